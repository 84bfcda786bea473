package access

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillback/taskdeck/pkg/async"
	"github.com/quillback/taskdeck/pkg/audit"
	"github.com/quillback/taskdeck/pkg/httputil"
	"github.com/quillback/taskdeck/pkg/middleware"
	"github.com/quillback/taskdeck/pkg/observability"
)

// auditWriteTimeout bounds the detached audit writes handlers fire after
// responding.
const auditWriteTimeout = 5 * time.Second

// Handlers provides HTTP handlers for guarded access-control operations:
// team membership mutations, task shares, and caller-facing permission
// checks.
type Handlers struct {
	store       *Store
	resolver    *Resolver
	gate        *Gate
	guard       *Guard
	auditLogger audit.Logger
	metrics     *observability.Metrics
}

// NewHandlers creates new access handlers
func NewHandlers(store *Store, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Handlers{
		store:       store,
		resolver:    NewResolver(store),
		gate:        NewGate(store),
		guard:       NewGuard(store),
		auditLogger: auditLogger,
	}
}

// SetMetrics attaches Prometheus metrics. Call before RegisterRoutes.
func (h *Handlers) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// Gate returns the gate backing these handlers, for route middleware.
func (h *Handlers) Gate() *Gate {
	return h.gate
}

// RegisterRoutes registers all access-control routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	gm := NewGateMiddleware(h.gate)
	gm.metrics = h.metrics

	// Team membership mutations
	router.HandleFunc("/teams/{id}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/teams/{id}/members/{user_id}/role", h.ChangeRole).Methods("PUT")
	router.HandleFunc("/teams/{id}/members/{user_id}", h.RemoveMember).Methods("DELETE")
	router.HandleFunc("/teams/{id}", h.DeleteTeam).Methods("DELETE")

	// Task shares
	router.HandleFunc("/tasks/{id}/shares", h.CreateShare).Methods("POST")
	router.HandleFunc("/tasks/{id}/shares/{user_id}", h.RevokeShare).Methods("DELETE")
	router.Handle("/tasks/{id}/shares",
		gm.RequireTaskAction(ActionShare)(http.HandlerFunc(h.ListShares))).Methods("GET")

	// Permission checking
	router.HandleFunc("/access/check", h.Check).Methods("POST")
}

// AddMember adds a user to a team with a role
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.UserID, "user_id") {
		return
	}

	result, err := h.guard.AddMember(ctx, callerID, teamID, req.UserID, Role(req.Role))
	h.logMutation(r, audit.EventTypeTeamMemberAdd, callerID, audit.ResourceTypeTeam, teamID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteCreated(w, Membership{
		TeamID: teamID,
		UserID: req.UserID,
		Role:   Role(req.Role),
	})
}

// ChangeRole changes a member's role in a team
func (h *Handlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.guard.ChangeRole(ctx, callerID, teamID, targetID, Role(req.Role))
	h.logMutation(r, audit.EventTypeTeamRoleChange, callerID, audit.ResourceTypeTeam, teamID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteSuccess(w, Membership{
		TeamID: teamID,
		UserID: targetID,
		Role:   Role(req.Role),
	})
}

// RemoveMember removes a user from a team. A non-owner removing themselves
// is an ordinary leave.
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	result, err := h.guard.RemoveMember(ctx, callerID, teamID, targetID)
	h.logMutation(r, audit.EventTypeTeamMemberRemove, callerID, audit.ResourceTypeTeam, teamID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteNoContent(w)
}

// DeleteTeam deletes a team and all of its memberships
func (h *Handlers) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	result, err := h.guard.DeleteTeam(ctx, callerID, teamID)
	h.logMutation(r, audit.EventTypeTeamDelete, callerID, audit.ResourceTypeTeam, teamID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteNoContent(w)
}

// CreateShare shares a task with another user. Re-sharing with the same
// user replaces the previous permission.
func (h *Handlers) CreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	taskID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID     int64  `json:"user_id"`
		Permission string `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.UserID, "user_id") {
		return
	}

	result, err := h.guard.CreateShare(ctx, callerID, taskID, req.UserID, SharePermission(req.Permission))
	h.logMutation(r, audit.EventTypeShareCreate, callerID, audit.ResourceTypeTask, taskID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteCreated(w, Share{
		TaskID:           taskID,
		SharedWithUserID: req.UserID,
		SharedByUserID:   callerID,
		Permission:       SharePermission(req.Permission),
	})
}

// RevokeShare removes a share from a task
func (h *Handlers) RevokeShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	taskID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	withUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	result, err := h.guard.RevokeShare(ctx, callerID, taskID, withUserID)
	h.logMutation(r, audit.EventTypeShareRevoke, callerID, audit.ResourceTypeTask, taskID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteNoContent(w)
}

// ListShares lists all shares of a task. The route is gated on the share
// action, so only callers who could themselves share the task see the list.
func (h *Handlers) ListShares(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	shares, err := h.store.ListShares(ctx, taskID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if shares == nil {
		shares = []Share{}
	}

	httputil.WriteSuccess(w, shares)
}

// Check resolves the caller's own rights on a task and reports the
// outcome for a requested action. The response describes the caller only,
// so it reveals nothing a direct request would not.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		TaskID int64  `json:"task_id"`
		Action string `json:"action"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.TaskID, "task_id") {
		return
	}
	action := Action(req.Action)
	if !action.TaskAction() {
		httputil.WriteValidationError(w, "unknown action: "+req.Action)
		return
	}

	started := time.Now()
	decision, err := h.resolver.Resolve(ctx, callerID, req.TaskID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	outcome := outcomeFor(decision, action)
	if h.metrics != nil {
		h.metrics.AuthzDuration.WithLabelValues(string(action)).Observe(time.Since(started).Seconds())
		h.metrics.AuthzDecisionsTotal.WithLabelValues(string(action), string(outcome)).Inc()
	}

	status := audit.EventStatusSuccess
	if outcome != OutcomeAllowed {
		status = audit.EventStatusDenied
	}
	taskID := req.TaskID
	async.SafeGo(ctx, auditWriteTimeout, "audit authz decision", func(ctx context.Context) error {
		return h.auditLogger.LogAuthorization(ctx, audit.EventTypeAuthzDecision, &callerID,
			audit.ResourceTypeTask, strconv.FormatInt(taskID, 10), status, string(outcome))
	})

	httputil.WriteSuccess(w, struct {
		Outcome  Outcome   `json:"outcome"`
		Decision *Decision `json:"decision"`
	}{
		Outcome:  outcome,
		Decision: decision,
	})
}

// requireCaller extracts the authenticated caller or writes a 401
func (h *Handlers) requireCaller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return 0, false
	}
	return identity.UserID, true
}

// logMutation records a guarded mutation attempt in the audit log
func (h *Handlers) logMutation(r *http.Request, eventType audit.EventType, callerID int64, resourceType audit.ResourceType, resourceID int64, result GuardResult, err error) {
	status := audit.EventStatusSuccess
	message := "allowed"
	switch {
	case err != nil:
		status = audit.EventStatusFailure
		message = "storage error"
	case !result.Allowed:
		status = audit.EventStatusDenied
		message = string(result.Reason)
	}
	if h.metrics != nil {
		switch {
		case err != nil:
			h.metrics.StorageErrorsTotal.WithLabelValues(string(eventType)).Inc()
		case !result.Allowed:
			h.metrics.GuardDenialsTotal.WithLabelValues(string(eventType), string(result.Reason)).Inc()
		}
	}
	async.SafeGo(r.Context(), auditWriteTimeout, "audit mutation", func(ctx context.Context) error {
		return h.auditLogger.LogMutation(ctx, eventType, &callerID, resourceType,
			strconv.FormatInt(resourceID, 10), status, message)
	})
}

// writeGuardDenial maps a guard denial to its HTTP status. Bodies carry
// only the reason kind.
func writeGuardDenial(w http.ResponseWriter, result GuardResult) {
	switch result.Reason {
	case ReasonNotAuthenticated:
		httputil.WriteUnauthorized(w, string(result.Reason))
	case ReasonNotFound:
		httputil.WriteNotFoundError(w, string(result.Reason))
	case ReasonForbidden, ReasonInvariantViolation:
		httputil.WriteForbidden(w, string(result.Reason))
	default:
		httputil.WriteInternalError(w)
	}
}
