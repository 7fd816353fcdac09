package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	agentapp "github.com/storeops/backend/internal/application/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"github.com/storeops/backend/internal/interfaces/http/middleware"
)

// AgentHandler exposes the back-office agent settings and review surface:
// the agent catalog, per-store enablement and configuration, run history,
// and the approval queue for proposed actions.
type AgentHandler struct {
	BaseHandler
	settings *agentapp.SettingsService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(settings *agentapp.SettingsService) *AgentHandler {
	return &AgentHandler{settings: settings}
}

// RegisterRoutes registers the agent settings and review routes
func (h *AgentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.GET("", h.ListCatalog)
		agents.GET("/settings", h.ListStoreAgents)
		agents.GET("/runs", h.ListRuns)
		agents.GET("/actions", h.ListActions)
		agents.POST("/actions/:id/approve", h.ApproveAction)
		agents.POST("/actions/:id/reject", h.RejectAction)
		agents.GET("/:slug", h.GetStoreAgent)
		agents.PATCH("/:slug", h.UpdateStoreAgent)
		agents.POST("/:slug/enable", h.EnableAgent)
		agents.POST("/:slug/run", h.TriggerRun)
	}
}

// agentListQuery binds the shared filter params for runs and actions
type agentListQuery struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir"`
	Status     string `form:"status"`
	AgentSlug  string `form:"agent_slug"`
	ActionType string `form:"action_type"`
}

func (q agentListQuery) toFilter() shared.Filter {
	filter := shared.DefaultFilter()
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 && q.PageSize <= 100 {
		filter.PageSize = q.PageSize
	}
	filter.OrderBy = q.OrderBy
	filter.OrderDir = q.OrderDir
	filter.Filters = map[string]interface{}{}
	if q.Status != "" {
		filter.Filters["status"] = q.Status
	}
	if q.AgentSlug != "" {
		filter.Filters["agent_slug"] = q.AgentSlug
	}
	if q.ActionType != "" {
		filter.Filters["action_type"] = q.ActionType
	}
	return filter
}

// RejectActionRequest carries the reviewer's reason for rejecting an action
type RejectActionRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListCatalog godoc
// @ID           listAgentCatalog
// @Summary      List available agents
// @Description  List every registered agent with its default cadence and config schema
// @Tags         agents
// @Produce      json
// @Success      200 {object} APIResponse[[]agentdomain.Descriptor]
// @Router       /agents [get]
func (h *AgentHandler) ListCatalog(c *gin.Context) {
	h.Success(c, h.settings.ListAgents())
}

// ListStoreAgents godoc
// @ID           listStoreAgents
// @Summary      List agent settings for the store
// @Description  List the per-store settings rows for every agent the store has touched
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Success      200 {object} APIResponse[[]agentapp.StoreAgentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Router       /agents/settings [get]
func (h *AgentHandler) ListStoreAgents(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agents, err := h.settings.ListStoreAgents(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, agents)
}

// GetStoreAgent godoc
// @ID           getStoreAgent
// @Summary      Get one agent's settings for the store
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        slug path string true "Agent slug"
// @Success      200 {object} APIResponse[agentapp.StoreAgentResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Router       /agents/{slug} [get]
func (h *AgentHandler) GetStoreAgent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agent, err := h.settings.GetStoreAgent(c.Request.Context(), tenantID, c.Param("slug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, agent)
}

// EnableAgent godoc
// @ID           enableAgent
// @Summary      Enable an agent for the store
// @Description  Create or re-enable the store's settings row for the agent, seeded with the agent's defaults
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        slug path string true "Agent slug"
// @Success      200 {object} APIResponse[agentapp.StoreAgentResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Router       /agents/{slug}/enable [post]
func (h *AgentHandler) EnableAgent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agent, err := h.settings.EnableAgent(c.Request.Context(), tenantID, c.Param("slug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, agent)
}

// UpdateStoreAgent godoc
// @ID           updateStoreAgent
// @Summary      Update an agent's settings for the store
// @Description  Patch enablement, approval mode, cadence, or config overrides. Overrides are validated against the agent's config schema before saving.
// @Tags         agents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        slug path string true "Agent slug"
// @Param        request body agentapp.UpdateStoreAgentRequest true "Settings patch"
// @Success      200 {object} APIResponse[agentapp.StoreAgentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /agents/{slug} [patch]
func (h *AgentHandler) UpdateStoreAgent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req agentapp.UpdateStoreAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	agent, err := h.settings.UpdateStoreAgent(c.Request.Context(), tenantID, c.Param("slug"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, agent)
}

// TriggerRun godoc
// @ID           triggerAgentRun
// @Summary      Run an agent now
// @Description  Start a manual run for the agent, subject to the same single-flight lock as scheduled runs
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        slug path string true "Agent slug"
// @Success      200 {object} APIResponse[agentapp.RunResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Router       /agents/{slug}/run [post]
func (h *AgentHandler) TriggerRun(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	outcome, err := h.settings.TriggerRun(c.Request.Context(), tenantID, c.Param("slug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if outcome.Skipped {
		h.Conflict(c, outcome.SkipReason)
		return
	}

	resp := agentapp.ToRunResponse(outcome.Run)
	h.Success(c, resp)
}

// ListRuns godoc
// @ID           listAgentRuns
// @Summary      List agent runs
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        agent_slug query string false "Filter by agent slug"
// @Param        status query string false "Filter by run status" Enums(running, completed, failed, timed_out)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]agentapp.RunResponse]
// @Router       /agents/runs [get]
func (h *AgentHandler) ListRuns(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query agentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	filter := query.toFilter()

	runs, err := h.settings.ListRuns(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, runs, int64(len(runs)), filter.Page, filter.PageSize)
}

// ListActions godoc
// @ID           listAgentActions
// @Summary      List proposed actions
// @Description  List actions for review, newest first. Filter by status=pending to get the approval queue.
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        status query string false "Filter by status" Enums(pending, approved, rejected, executing, executed, failed)
// @Param        agent_slug query string false "Filter by agent slug"
// @Param        action_type query string false "Filter by action type"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]agentapp.ActionResponse]
// @Router       /agents/actions [get]
func (h *AgentHandler) ListActions(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query agentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	filter := query.toFilter()

	actions, err := h.settings.ListActions(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, actions, int64(len(actions)), filter.Page, filter.PageSize)
}

// ApproveAction godoc
// @ID           approveAgentAction
// @Summary      Approve a pending action
// @Description  Approve the action and execute it immediately. The response reports whether execution succeeded.
// @Tags         agents
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Action ID" format(uuid)
// @Success      200 {object} APIResponse[ApproveActionResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /agents/actions/{id}/approve [post]
func (h *AgentHandler) ApproveAction(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	actionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid action ID")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		userID = uuid.Nil
	}

	outcome, err := h.settings.ApproveAction(c.Request.Context(), tenantID, actionID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ApproveActionResponse{
		Status:  string(outcome.Status),
		Message: outcome.Message,
		Result:  outcome.Result,
	})
}

// ApproveActionResponse reports the execution outcome of an approved action
type ApproveActionResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// RejectAction godoc
// @ID           rejectAgentAction
// @Summary      Reject a pending action
// @Tags         agents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Action ID" format(uuid)
// @Param        request body RejectActionRequest true "Rejection reason"
// @Success      204 "No Content"
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /agents/actions/{id}/reject [post]
func (h *AgentHandler) RejectAction(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	actionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid action ID")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		userID = uuid.Nil
	}

	var req RejectActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if err := h.settings.RejectAction(c.Request.Context(), tenantID, actionID, userID, req.Reason); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
