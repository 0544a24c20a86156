package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/s3archive"
)

// Mailer sends one email
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ObjectStore stores one JSON document under a key
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

func decodePayload(effect *models.OutboxEffect, v interface{}) error {
	if err := json.Unmarshal(effect.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload of effect %s: %w", effect.Kind, effect.EffectID, err)
	}
	return nil
}

// AuditSink writes audit_logs rows
type AuditSink struct {
	logs repository.AuditLogRepository
}

func NewAuditSink(logs repository.AuditLogRepository) *AuditSink {
	return &AuditSink{logs: logs}
}

func (s *AuditSink) Deliver(ctx context.Context, effect *models.OutboxEffect) error {
	var p models.AuditPayload
	if err := decodePayload(effect, &p); err != nil {
		return err
	}
	_, err := s.logs.CreateOnce(ctx, &models.AuditLog{
		EntityType:     p.EntityType,
		EntityID:       p.EntityID,
		Action:         p.Action,
		PerformedBy:    p.PerformedBy,
		Details:        datatypes.JSONMap(p.Details),
		SourceEffectID: effect.EffectID,
	})
	return err
}

// NotificationSink writes the in-app notification and sends the email copy
type NotificationSink struct {
	notifications repository.NotificationRepository
	mailer        Mailer
}

// NewNotificationSink returns a sink. A nil mailer skips the email channel.
func NewNotificationSink(notifications repository.NotificationRepository, mailer Mailer) *NotificationSink {
	return &NotificationSink{notifications: notifications, mailer: mailer}
}

func (s *NotificationSink) Deliver(ctx context.Context, effect *models.OutboxEffect) error {
	var p models.NotificationPayload
	if err := decodePayload(effect, &p); err != nil {
		return err
	}

	if p.HasChannel(models.NotificationChannelInApp) && p.UserID != "" {
		channels, err := json.Marshal(p.Channels)
		if err != nil {
			return err
		}
		created, err := s.notifications.CreateOnce(ctx, &models.Notification{
			UserID:            p.UserID,
			NotificationType:  p.Type,
			Title:             p.Title,
			Message:           p.Message,
			Priority:          p.Priority,
			RelatedEntityType: p.RelatedEntityType,
			RelatedEntityID:   p.RelatedEntityID,
			DeliveryChannels:  datatypes.JSON(channels),
			SourceEffectID:    effect.EffectID,
		})
		if err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		if !created {
			log.Debugf("[Outbox] Notification for effect %s already stored", effect.EffectID)
		}
	}

	if p.HasChannel(models.NotificationChannelEmail) && p.Email != "" && s.mailer != nil {
		body := fmt.Sprintf("<p>%s</p>", html.EscapeString(p.Message))
		if err := s.mailer.Send(ctx, p.Email, p.Title, body); err != nil {
			return fmt.Errorf("send notification email: %w", err)
		}
	}
	return nil
}

// ReceiptSink archives receipts to object storage
type ReceiptSink struct {
	store ObjectStore
}

// NewReceiptSink returns a sink. A nil store turns archiving off.
func NewReceiptSink(store ObjectStore) *ReceiptSink {
	return &ReceiptSink{store: store}
}

func (s *ReceiptSink) Deliver(ctx context.Context, effect *models.OutboxEffect) error {
	if s.store == nil {
		return nil
	}
	var p models.ReceiptPayload
	if err := decodePayload(effect, &p); err != nil {
		return err
	}
	if p.ReceiptNumber == "" {
		return fmt.Errorf("receipt effect %s has no receipt number", effect.EffectID)
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return s.store.PutJSON(ctx, s3archive.ReceiptKey(p.ReceiptNumber, p.PaidAt), body)
}
