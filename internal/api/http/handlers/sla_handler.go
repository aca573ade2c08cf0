package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/api/dto"
	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/service"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// SlaHandler exposes SLA reporting and the manual sweep trigger.
type SlaHandler struct {
	service *service.CaseService
	now     func() time.Time
}

// NewSlaHandler constructs handler.
func NewSlaHandler(caseService *service.CaseService) *SlaHandler {
	return &SlaHandler{service: caseService, now: time.Now}
}

// Metrics GET /sla/metrics?from=&to=. Bounds are RFC3339; the window defaults
// to the last 7 days.
func (h *SlaHandler) Metrics(c *fiber.Ctx) error {
	to := h.now()
	from := to.Add(-7 * 24 * time.Hour)
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return apperrors.NewValidationError("invalid from", map[string]any{"from": raw})
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return apperrors.NewValidationError("invalid to", map[string]any{"to": raw})
		}
	}
	m, err := h.service.SlaMetrics(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": m, "from": from, "to": to})
}

// Breached GET /sla/breached.
func (h *SlaHandler) Breached(c *fiber.Ctx) error {
	return h.list(c, domain.SlaBreached)
}

// ApproachingBreach GET /sla/approaching-breach.
func (h *SlaHandler) ApproachingBreach(c *fiber.Ctx) error {
	return h.list(c, domain.SlaApproachingBreach)
}

// Sweep POST /sla/sweep.
func (h *SlaHandler) Sweep(c *fiber.Ctx) error {
	res, err := h.service.SweepSla(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}

func (h *SlaHandler) list(c *fiber.Ctx, status domain.SlaStatus) error {
	items, err := h.service.ListSlaByStatus(c.UserContext(), status)
	if err != nil {
		return err
	}
	out := make([]dto.SlaCaseResponse, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, dto.SlaCaseResponse{
			CaseID:     it.Case.ID,
			CaseNumber: it.Case.CaseNumber,
			Subject:    it.Case.Subject,
			QueueType:  it.Case.QueueType,
			Status:     it.Case.Status,
			Sla:        dto.NewSlaRecordResponse(&it.Sla),
		})
	}
	return c.JSON(fiber.Map{"data": out})
}
