package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/api/dto"
	"github.com/casedesk/case-dispatch/internal/dispatch"
	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/observability"
	"github.com/casedesk/case-dispatch/internal/service"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// AgentsHandler manages agent profile, availability and dispatch endpoints.
type AgentsHandler struct {
	service *service.CaseService
	metrics *observability.Metrics
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(caseService *service.CaseService, metrics *observability.Metrics) *AgentsHandler {
	return &AgentsHandler{service: caseService, metrics: metrics}
}

// Upsert PUT /agents/:id.
func (h *AgentsHandler) Upsert(c *fiber.Ctx) error {
	var req dto.UpsertAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.service.RegisterAgent(c.UserContext(), c.Params("id"), service.AgentInput{
		Name:               req.Name,
		Email:              req.Email,
		Skills:             req.Skills,
		MaxConcurrentCases: req.MaxConcurrentCases,
		Status:             req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// Available GET /agents/available?queue_type=.
func (h *AgentsHandler) Available(c *fiber.Ctx) error {
	qt := domain.QueueType(c.Query("queue_type"))
	if qt == "" {
		return apperrors.NewValidationError("queue_type required", nil)
	}
	agents, err := h.service.AvailableAgents(c.UserContext(), qt)
	if err != nil {
		return err
	}
	out := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		out = append(out, dto.NewAgentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// NextCase POST /agents/:id/next-case?queue_type=. Routine ineligibility is a
// 200 with no case and a reason code.
func (h *AgentsHandler) NextCase(c *fiber.Ctx) error {
	qt := domain.QueueType(c.Query("queue_type"))
	if qt == "" {
		return apperrors.NewValidationError("queue_type required", nil)
	}
	assignment, err := h.service.RequestNextCase(c.UserContext(), c.Params("id"), qt)
	if err != nil {
		if dispatch.IsIneligible(err) {
			reason := dispatch.ReasonCode(err)
			h.metrics.RecordDispatch(string(qt), reason)
			return c.JSON(fiber.Map{"data": dto.NextCaseResponse{Reason: reason}})
		}
		return err
	}
	h.metrics.RecordDispatch(string(qt), "assigned")
	resp := dto.NewCaseResponse(assignment.Case)
	out := dto.NextCaseResponse{
		Case:           &resp,
		EntryID:        assignment.Entry.ID,
		PriorityScore:  assignment.Entry.PriorityScore,
		AgentCaseCount: assignment.Agent.CurrentCaseCount,
	}
	if assignment.Entry.AssignedAt != nil {
		out.WaitedMinutes = assignment.Entry.AssignedAt.Sub(assignment.Entry.EnqueuedAt).Minutes()
	}
	return c.JSON(fiber.Map{"data": out})
}

// SetStatus POST /agents/:id/status.
func (h *AgentsHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.AgentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.service.SetAgentStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// Workload GET /agents/:id/workload.
func (h *AgentsHandler) Workload(c *fiber.Ctx) error {
	w, err := h.service.AgentWorkload(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	cases := make([]dto.CaseResponse, 0, len(w.ActiveCases))
	for i := range w.ActiveCases {
		cases = append(cases, dto.NewCaseResponse(&w.ActiveCases[i]))
	}
	return c.JSON(fiber.Map{"data": dto.WorkloadResponse{
		Agent:       dto.NewAgentResponse(w.Agent),
		ActiveCases: cases,
	}})
}
