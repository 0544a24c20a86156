package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpay/civicpay/internal/pkg/payments"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

// BillController lists the caller's bills for the payment screen
type BillController struct {
	svc *payments.Service
}

func NewBillController(svc *payments.Service) *BillController {
	return &BillController{svc: svc}
}

func (bc *BillController) HandleListBills(c *fiber.Ctx) error {
	bills, err := bc.svc.ListBills(c.UserContext(), usercontext.GetUserID(c), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"bills": bills})
}
