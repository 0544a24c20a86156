package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock to the query. SQLite has no FOR UPDATE and
// already serializes writers, so the clause is skipped there.
func forUpdate(db *gorm.DB, options string) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE", Options: options})
}
