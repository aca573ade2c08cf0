package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/api/dto"
	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/service"
)

// QueuesHandler exposes queue depth, metrics and redistribution.
type QueuesHandler struct {
	service *service.CaseService
}

// NewQueuesHandler constructs handler.
func NewQueuesHandler(caseService *service.CaseService) *QueuesHandler {
	return &QueuesHandler{service: caseService}
}

// Depth GET /queues/:type/depth.
func (h *QueuesHandler) Depth(c *fiber.Ctx) error {
	qt := domain.QueueType(c.Params("type"))
	depth, err := h.service.QueueDepth(qt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.QueueDepthResponse{QueueType: qt, Depth: depth}})
}

// Metrics GET /queues/:type/metrics.
func (h *QueuesHandler) Metrics(c *fiber.Ctx) error {
	m, err := h.service.QueueMetrics(c.UserContext(), domain.QueueType(c.Params("type")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": m})
}

// Redistribute POST /queues/redistribute.
func (h *QueuesHandler) Redistribute(c *fiber.Ctx) error {
	changed := h.service.Redistribute(c.UserContext())
	return c.JSON(fiber.Map{"data": dto.RedistributeResponse{Changed: changed}})
}
