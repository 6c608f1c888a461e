package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/repository/drafts"
	"github.com/vibework/reportbot/internal/service/assembler"
	"github.com/vibework/reportbot/internal/service/builder"
	"github.com/vibework/reportbot/internal/service/notify"
	"github.com/vibework/reportbot/internal/service/reference"
	"github.com/vibework/reportbot/internal/service/session"
	"github.com/vibework/reportbot/internal/service/syncengine"
	"github.com/vibework/reportbot/pkg/initdata"
)

const (
	ctxKeyUser  = "tg_user"
	ctxKeyActor = "actor"
)

// MiniAppHandler adapts the report-entry services to the Mini App HTTP API.
type MiniAppHandler struct {
	botToken         string
	registrationCode string

	reference *reference.Service
	store     drafts.Store
	engine    *syncengine.Engine
	asm       *assembler.Service
	sessions  *session.Manager
	notifier  *notify.Service
	logger    *zap.Logger
}

// NewMiniAppHandler constructs the HTTP handler adapter.
func NewMiniAppHandler(
	botToken, registrationCode string,
	ref *reference.Service,
	store drafts.Store,
	engine *syncengine.Engine,
	asm *assembler.Service,
	sessions *session.Manager,
	notifier *notify.Service,
	logger *zap.Logger,
) *MiniAppHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MiniAppHandler{
		botToken:         botToken,
		registrationCode: registrationCode,
		reference:        ref,
		store:            store,
		engine:           engine,
		asm:              asm,
		sessions:         sessions,
		notifier:         notifier,
		logger:           logger,
	}
}

// Identify validates the signed init data carried by every Mini App request
// and attaches the Telegram user to the request context.
func (h *MiniAppHandler) Identify(c *gin.Context) {
	raw := c.GetHeader("X-Telegram-Init-Data")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing init data"})
		return
	}

	user, err := initdata.Validate(raw, h.botToken)
	if err != nil {
		h.logger.Warn("init data validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
		return
	}

	c.Set(ctxKeyUser, user)
	c.Next()
}

// RequireActor resolves the authenticated user to a registered, active
// employee. Both gates are terminal: the client gets a 403 with the gate
// flags and shows the matching screen.
func (h *MiniAppHandler) RequireActor(c *gin.Context) {
	user := h.user(c)

	actor, gates, err := h.reference.Employee(c.Request.Context(), user.TelegramID())
	if err != nil {
		if errors.Is(err, reference.ErrEmployeeNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"gates": gates})
			return
		}
		h.logger.Error("employee lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
		return
	}
	if !gates.Registered || !gates.Active {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"gates": gates})
		return
	}

	c.Set(ctxKeyActor, actor)
	c.Next()
}

// Init bootstraps a Mini App session: actor identity, catalogs, the current
// editing draft and the outstanding queue depth in one response.
func (h *MiniAppHandler) Init(c *gin.Context) {
	actor := h.actor(c)

	snapshot, err := h.reference.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("snapshot unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
		return
	}

	current, err := h.store.GetCurrent(c.Request.Context())
	if err != nil {
		h.logger.Error("current draft lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft storage failure"})
		return
	}

	pending, err := h.engine.PendingCount(c.Request.Context())
	if err != nil {
		h.logger.Warn("pending count unavailable", zap.Error(err))
		pending = h.engine.LastPending()
	}

	c.JSON(http.StatusOK, gin.H{
		"employee":   actor,
		"references": snapshot,
		"draft":      current,
		"pending":    pending,
		"online":     h.engine.Online(),
	})
}

type registerRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// Register admits a new employee after checking the shared code word.
func (h *MiniAppHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Code != h.registrationCode {
		c.JSON(http.StatusForbidden, gin.H{"error": "wrong code word"})
		return
	}

	user := h.user(c)
	if err := h.reference.Register(c.Request.Context(), user.TelegramID(), req.Name); err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to register"})
		return
	}

	c.Status(http.StatusCreated)
}

type createDraftRequest struct {
	ProjectID string `json:"project_id"`
	ProductID string `json:"product_id"`
}

// CreateDraft opens a fresh editing draft, optionally pre-selecting the
// previous project and product for repeat entry.
func (h *MiniAppHandler) CreateDraft(c *gin.Context) {
	// An empty body is a plain "new blank draft" request.
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	seed := drafts.Seed{}
	if req.ProjectID != "" {
		snapshot, err := h.reference.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
			return
		}
		if project, ok := snapshot.Project(req.ProjectID); ok {
			seed.ProjectID, seed.ProjectName = project.ID, project.Name
			if product, ok := snapshot.Product(project.ID, req.ProductID); ok {
				seed.ProductID, seed.ProductName = product.ID, product.Name
			}
		}
	}

	draft, err := h.store.Create(c.Request.Context(), seed)
	if err != nil {
		h.logger.Error("draft creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft storage failure"})
		return
	}

	actor := h.actor(c)
	sess := h.sessions.Get(actor.TelegramID)
	sess.DraftID = draft.ID
	h.sessions.Update(actor.TelegramID, sess)

	c.JSON(http.StatusCreated, draft)
}

// CurrentDraft returns the single draft in editing status, or 204 when none
// exists.
func (h *MiniAppHandler) CurrentDraft(c *gin.Context) {
	draft, err := h.store.GetCurrent(c.Request.Context())
	if err != nil {
		h.logger.Error("current draft lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft storage failure"})
		return
	}
	if draft == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, draft)
}

type updateDraftRequest struct {
	ProjectID *string `json:"project_id"`
	ProductID *string `json:"product_id"`
	Comment   *string `json:"comment"`
}

// UpdateDraft applies project, product or comment changes to an editing
// draft. Changing the project clears a product that does not belong to it.
func (h *MiniAppHandler) UpdateDraft(c *gin.Context) {
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	draft, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	if draft.Status != models.StatusEditing {
		c.JSON(http.StatusConflict, gin.H{"error": "draft is no longer editable"})
		return
	}

	patch := models.DraftPatch{Comment: req.Comment}

	if req.ProjectID != nil || req.ProductID != nil {
		snapshot, err := h.reference.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
			return
		}

		projectID := draft.ProjectID
		if req.ProjectID != nil {
			project, ok := snapshot.Project(*req.ProjectID)
			if !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown project"})
				return
			}
			projectID = project.ID
			patch.ProjectID, patch.ProjectName = &project.ID, &project.Name
			if project.ID != draft.ProjectID && req.ProductID == nil {
				empty := ""
				patch.ProductID, patch.ProductName = &empty, &empty
			}
		}
		if req.ProductID != nil {
			product, ok := snapshot.Product(projectID, *req.ProductID)
			if !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown product"})
				return
			}
			patch.ProductID, patch.ProductName = &product.ID, &product.Name
		}
	}

	updated, err := h.store.Update(c.Request.Context(), draft.ID, patch)
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type actionRequest struct {
	Category   string `json:"category" binding:"required"`
	WorkTypeID string `json:"work_type_id"`
	Hours      int    `json:"hours"`
	Minutes    int    `json:"minutes"`
	TypeID     string `json:"type_id"`
	MaterialID string `json:"material_id"`
	Quantity   string `json:"quantity"`
	Comment    string `json:"comment"`
}

func (r actionRequest) input() (builder.Input, bool) {
	switch models.Category(r.Category) {
	case models.CategoryLabour:
		return builder.LabourInput{WorkTypeID: r.WorkTypeID, Hours: r.Hours, Minutes: r.Minutes}, true
	case models.CategoryPaint:
		return builder.PaintInput{TypeID: r.TypeID, MaterialID: r.MaterialID, Quantity: r.Quantity}, true
	case models.CategoryMaterial:
		return builder.MaterialInput{TypeID: r.TypeID, MaterialID: r.MaterialID, Quantity: r.Quantity}, true
	case models.CategoryDefect:
		return builder.DefectInput{Comment: r.Comment}, true
	}
	return nil, false
}

// AddAction validates a line item against the catalogs and appends it to the
// draft. Incomplete selections are rejected, never silently dropped.
func (h *MiniAppHandler) AddAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input, ok := req.input()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	snapshot, err := h.reference.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
		return
	}

	action := builder.Build(snapshot, input)
	if action == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "incomplete or invalid action"})
		return
	}

	h.appendAction(c, c.Param("id"), *action)
}

// CommitSelection builds an action from the actor's step-by-step session
// selections and appends it to the session's draft.
func (h *MiniAppHandler) CommitSelection(c *gin.Context) {
	actor := h.actor(c)
	sess := h.sessions.Get(actor.TelegramID)

	input, ok := sess.Input()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no category selected"})
		return
	}
	if sess.DraftID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no draft in progress"})
		return
	}

	snapshot, err := h.reference.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
		return
	}

	action := builder.Build(snapshot, input)
	if action == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "incomplete or invalid action"})
		return
	}

	draftID := sess.DraftID
	sess.Reset()
	h.sessions.Update(actor.TelegramID, sess)

	h.appendAction(c, draftID, *action)
}

type selectionRequest struct {
	Category   *string `json:"category"`
	WorkTypeID *string `json:"work_type_id"`
	Hours      *int    `json:"hours"`
	Minutes    *int    `json:"minutes"`
	TypeID     *string `json:"type_id"`
	MaterialID *string `json:"material_id"`
	Quantity   *string `json:"quantity"`
	Comment    *string `json:"comment"`
}

// UpdateSelection records partial step-by-step selections in the actor's
// session context.
func (h *MiniAppHandler) UpdateSelection(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := h.actor(c)
	sess := h.sessions.Get(actor.TelegramID)

	if req.Category != nil {
		sess.SetCategory(models.Category(*req.Category))
	}
	if req.WorkTypeID != nil {
		sess.WorkTypeID = *req.WorkTypeID
	}
	if req.Hours != nil || req.Minutes != nil {
		hours, minutes := sess.Hours, sess.Minutes
		if req.Hours != nil {
			hours = *req.Hours
		}
		if req.Minutes != nil {
			minutes = *req.Minutes
		}
		sess.SetElapsed(hours, minutes)
	}
	if req.TypeID != nil {
		sess.SelectParentType(*req.TypeID)
	}
	if req.MaterialID != nil {
		sess.SelectMaterial(*req.MaterialID)
	}
	if req.Quantity != nil {
		sess.Quantity = *req.Quantity
	}
	if req.Comment != nil {
		sess.Comment = *req.Comment
	}

	h.sessions.Update(actor.TelegramID, sess)
	c.JSON(http.StatusOK, sess)
}

// RemoveAction deletes an action from an editing draft by position.
func (h *MiniAppHandler) RemoveAction(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action index"})
		return
	}

	draft, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	if draft.Status != models.StatusEditing {
		c.JSON(http.StatusConflict, gin.H{"error": "draft is no longer editable"})
		return
	}
	if index >= len(draft.Actions) {
		c.JSON(http.StatusNotFound, gin.H{"error": "action index out of range"})
		return
	}

	remaining := make([]models.Action, 0, len(draft.Actions)-1)
	remaining = append(remaining, draft.Actions[:index]...)
	remaining = append(remaining, draft.Actions[index+1:]...)

	updated, err := h.store.Update(c.Request.Context(), draft.ID, models.DraftPatch{Actions: &remaining})
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SubmitDraft queues the draft and attempts immediate delivery when online.
func (h *MiniAppHandler) SubmitDraft(c *gin.Context) {
	actor := h.actor(c)
	id := c.Param("id")

	delivered, err := h.engine.SubmitDraft(c.Request.Context(), id, actor)
	if err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		if errors.Is(err, syncengine.ErrDraftIncomplete) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "draft is incomplete"})
			return
		}
		if errors.Is(err, syncengine.ErrAlreadyDelivered) {
			c.JSON(http.StatusConflict, gin.H{"error": "draft has already been delivered"})
			return
		}
		h.logger.Error("draft submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		return
	}

	h.sessions.Clear(actor.TelegramID)

	if delivered {
		h.notifyDelivered(c, id, actor)
	}

	c.JSON(http.StatusOK, gin.H{
		"delivered": delivered,
		"pending":   h.engine.LastPending(),
	})
}

type formReportRequest struct {
	ProjectID string          `json:"project_id" binding:"required"`
	ProductID string          `json:"product_id" binding:"required"`
	Actions   []actionRequest `json:"actions" binding:"required"`
	Comment   string          `json:"comment"`
}

// SubmitForm accepts a whole report in one call, the Mini App's single-screen
// entry mode. The report still travels through the draft queue so a send
// failure leaves it retryable.
func (h *MiniAppHandler) SubmitForm(c *gin.Context) {
	var req formReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Actions) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "report has no actions"})
		return
	}

	snapshot, err := h.reference.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference data unavailable"})
		return
	}

	project, ok := snapshot.Project(req.ProjectID)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown project"})
		return
	}
	product, ok := snapshot.Product(project.ID, req.ProductID)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown product"})
		return
	}

	actions := make([]models.Action, 0, len(req.Actions))
	for i, raw := range req.Actions {
		input, ok := raw.input()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category", "index": i})
			return
		}
		action := builder.Build(snapshot, input)
		if action == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "incomplete or invalid action", "index": i})
			return
		}
		actions = append(actions, *action)
	}

	draft, err := h.store.Create(c.Request.Context(), drafts.Seed{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		ProductID:   product.ID,
		ProductName: product.Name,
	})
	if err != nil {
		h.logger.Error("draft creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft storage failure"})
		return
	}

	patch := models.DraftPatch{Actions: &actions}
	if req.Comment != "" {
		patch.Comment = &req.Comment
	}
	if _, err := h.store.Update(c.Request.Context(), draft.ID, patch); err != nil {
		h.respondDraftError(c, err)
		return
	}

	actor := h.actor(c)
	delivered, err := h.engine.SubmitDraft(c.Request.Context(), draft.ID, actor)
	if err != nil {
		h.logger.Error("form submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		return
	}

	if delivered {
		h.notifyDelivered(c, draft.ID, actor)
	}

	c.JSON(http.StatusOK, gin.H{
		"draft_id":  draft.ID,
		"delivered": delivered,
		"pending":   h.engine.LastPending(),
	})
}

// SyncStatus reports the queue depth and the last observed connectivity.
func (h *MiniAppHandler) SyncStatus(c *gin.Context) {
	pending, err := h.engine.PendingCount(c.Request.Context())
	if err != nil {
		h.logger.Warn("pending count unavailable", zap.Error(err))
		pending = h.engine.LastPending()
	}

	c.JSON(http.StatusOK, gin.H{
		"pending": pending,
		"online":  h.engine.Online(),
	})
}

// Drain runs a delivery pass over the queued drafts on client request, the
// Mini App's "retry now" button.
func (h *MiniAppHandler) Drain(c *gin.Context) {
	result, err := h.engine.Drain(c.Request.Context())
	if err != nil {
		h.logger.Error("drain failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "drain failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ran":       result.Ran,
		"delivered": result.Delivered,
		"failed":    result.Failed,
		"pending":   result.Pending,
	})
}

func (h *MiniAppHandler) appendAction(c *gin.Context, draftID string, action models.Action) {
	draft, err := h.store.Get(c.Request.Context(), draftID)
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	if draft.Status != models.StatusEditing {
		c.JSON(http.StatusConflict, gin.H{"error": "draft is no longer editable"})
		return
	}

	actions := append(append([]models.Action{}, draft.Actions...), action)
	updated, err := h.store.Update(c.Request.Context(), draft.ID, models.DraftPatch{Actions: &actions})
	if err != nil {
		h.respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// notifyDelivered pushes the confirmation message. Notification failures are
/// logged and swallowed: the report is already durable remotely.
func (h *MiniAppHandler) notifyDelivered(c *gin.Context, draftID string, actor models.Employee) {
	if h.notifier == nil || h.asm == nil {
		return
	}

	draft, err := h.store.Get(c.Request.Context(), draftID)
	if err != nil {
		h.logger.Warn("delivered draft re-read failed", zap.Error(err))
		return
	}
	report, err := h.asm.Assemble(draft, actor)
	if err != nil {
		h.logger.Warn("notification assembly failed", zap.Error(err))
		return
	}
	_ = h.notifier.ReportDelivered(c.Request.Context(), actor.TelegramID, report)
}

func (h *MiniAppHandler) respondDraftError(c *gin.Context, err error) {
	if errors.Is(err, drafts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	h.logger.Error("draft storage failure", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "draft storage failure"})
}

func (h *MiniAppHandler) user(c *gin.Context) *initdata.User {
	v, _ := c.Get(ctxKeyUser)
	user, _ := v.(*initdata.User)
	return user
}

func (h *MiniAppHandler) actor(c *gin.Context) models.Employee {
	v, _ := c.Get(ctxKeyActor)
	actor, _ := v.(models.Employee)
	return actor
}
