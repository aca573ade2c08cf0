package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/api/dto"
	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/service"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// CasesHandler manages case intake and lifecycle endpoints.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// Intake POST /cases.
func (h *CasesHandler) Intake(c *fiber.Ctx) error {
	var req dto.IntakeCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	created, err := h.service.Intake(c.UserContext(), domain.CaseDraft{
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		Subject:        req.Subject,
		Body:           req.Body,
		PrioritySignal: req.PrioritySignal,
		QueueType:      req.QueueType,
		Priority:       req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCaseResponse(created)})
}

// GetCase GET /cases/:id. The id may also be a case number.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	details, err := h.service.GetCase(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(details)})
}

// RecordFirstResponse POST /cases/:id/respond.
func (h *CasesHandler) RecordFirstResponse(c *fiber.Ctx) error {
	rec, err := h.service.RecordFirstResponse(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlaRecordResponse(rec)})
}

// Resolve POST /cases/:id/resolve.
func (h *CasesHandler) Resolve(c *fiber.Ctx) error {
	details, err := h.service.RecordResolution(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(details)})
}

// UpdateStatus POST /cases/:id/status.
func (h *CasesHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateCaseStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	updated, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

func caseDetail(d *service.CaseDetails) dto.CaseDetailResponse {
	return dto.CaseDetailResponse{
		CaseResponse: dto.NewCaseResponse(d.Case),
		Sla:          dto.NewSlaRecordResponse(d.Sla),
	}
}
