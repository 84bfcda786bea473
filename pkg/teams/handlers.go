package teams

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillback/taskdeck/pkg/access"
	"github.com/quillback/taskdeck/pkg/async"
	"github.com/quillback/taskdeck/pkg/audit"
	"github.com/quillback/taskdeck/pkg/httputil"
	"github.com/quillback/taskdeck/pkg/middleware"
	"github.com/quillback/taskdeck/pkg/observability"
)

// auditWriteTimeout bounds the detached audit writes handlers fire after
// responding.
const auditWriteTimeout = 5 * time.Second

// Handlers provides HTTP handlers for team lifecycle and invitations
type Handlers struct {
	service     *Service
	store       *access.Store
	auditLogger audit.Logger
	metrics     *observability.Metrics
}

// NewHandlers creates new team handlers
func NewHandlers(service *Service, store *access.Store, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Handlers{
		service:     service,
		store:       store,
		auditLogger: auditLogger,
	}
}

// SetMetrics attaches Prometheus metrics
func (h *Handlers) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// RegisterRoutes registers all team routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.CreateTeam).Methods("POST")
	router.HandleFunc("/teams", h.ListTeams).Methods("GET")
	router.HandleFunc("/teams/{id}", h.GetTeam).Methods("GET")
	router.HandleFunc("/teams/{id}/members", h.ListMembers).Methods("GET")

	router.HandleFunc("/teams/{id}/invitations", h.CreateInvitation).Methods("POST")
	router.HandleFunc("/teams/{id}/invitations", h.ListInvitations).Methods("GET")
	router.HandleFunc("/invitations/accept", h.AcceptInvitation).Methods("POST")
}

// CreateTeam creates a team owned by the caller
func (h *Handlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	team, err := h.service.CreateTeam(ctx, callerID, req.Name)
	switch err {
	case nil:
	case ErrInvalidName:
		httputil.WriteValidationError(w, err.Error())
		return
	case ErrNameTaken:
		httputil.WriteConflict(w, err.Error())
		return
	default:
		httputil.WriteInternalError(w)
		return
	}

	teamID := team.ID
	async.SafeGo(ctx, auditWriteTimeout, "audit team create", func(ctx context.Context) error {
		return h.auditLogger.LogMutation(ctx, audit.EventTypeTeamCreate, &callerID,
			audit.ResourceTypeTeam, strconv.FormatInt(teamID, 10),
			audit.EventStatusSuccess, "team created")
	})

	httputil.WriteCreated(w, team)
}

// ListTeams lists the caller's teams
func (h *Handlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teams, err := h.service.ListTeamsForUser(ctx, callerID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if teams == nil {
		teams = []Team{}
	}

	httputil.WriteSuccess(w, teams)
}

// GetTeam returns a team the caller belongs to. Non-members get 404, the
// same as for a team that does not exist.
func (h *Handlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !h.requireMember(w, r, callerID, teamID) {
		return
	}

	team, err := h.service.GetTeam(ctx, teamID)
	if err == ErrTeamNotFound {
		httputil.WriteNotFoundError(w, "team not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, team)
}

// ListMembers lists a team's members for members of that team
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !h.requireMember(w, r, callerID, teamID) {
		return
	}

	members, err := h.store.ListMembers(ctx, teamID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if members == nil {
		members = []access.Membership{}
	}

	httputil.WriteSuccess(w, members)
}

// CreateInvitation creates a tokened invite into a team
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
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
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	inv, result, err := h.service.CreateInvitation(ctx, callerID, teamID, req.Email, access.Role(req.Role))
	h.logInvite(r, audit.EventTypeInviteCreate, callerID, teamID, result, err)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}

	httputil.WriteCreated(w, inv)
}

// ListInvitations lists a team's pending invitations
func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	invites, result, err := h.service.ListInvitations(ctx, callerID, teamID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !result.Allowed {
		writeGuardDenial(w, result)
		return
	}
	if invites == nil {
		invites = []Invitation{}
	}

	httputil.WriteSuccess(w, invites)
}

// AcceptInvitation redeems an invite token for the caller
func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	member, err := h.service.AcceptInvitation(ctx, callerID, req.Token)
	switch err {
	case nil:
	case ErrInviteNotFound, ErrInviteExpired:
		// Expired reads the same as unknown so tokens cannot be probed.
		httputil.WriteNotFoundError(w, "invitation not found")
		return
	case ErrAlreadyMember:
		httputil.WriteConflict(w, err.Error())
		return
	default:
		httputil.WriteInternalError(w)
		return
	}

	teamID := member.TeamID
	async.SafeGo(ctx, auditWriteTimeout, "audit invite accept", func(ctx context.Context) error {
		return h.auditLogger.LogMutation(ctx, audit.EventTypeInviteAccept, &callerID,
			audit.ResourceTypeTeam, strconv.FormatInt(teamID, 10),
			audit.EventStatusSuccess, "invitation accepted")
	})

	httputil.WriteCreated(w, member)
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

// requireMember writes a 404 unless the caller is a member of the team
func (h *Handlers) requireMember(w http.ResponseWriter, r *http.Request, callerID, teamID int64) bool {
	member, err := h.store.GetMembership(r.Context(), teamID, callerID)
	if err != nil {
		httputil.WriteInternalError(w)
		return false
	}
	if member == nil {
		httputil.WriteNotFoundError(w, "team not found")
		return false
	}
	return true
}

// logInvite records an invitation attempt in the audit log
func (h *Handlers) logInvite(r *http.Request, eventType audit.EventType, callerID, teamID int64, result access.GuardResult, err error) {
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
	async.SafeGo(r.Context(), auditWriteTimeout, "audit invitation", func(ctx context.Context) error {
		return h.auditLogger.LogMutation(ctx, eventType, &callerID,
			audit.ResourceTypeTeam, strconv.FormatInt(teamID, 10), status, message)
	})
}

// writeGuardDenial maps a guard denial to its HTTP status
func writeGuardDenial(w http.ResponseWriter, result access.GuardResult) {
	switch result.Reason {
	case access.ReasonNotFound:
		httputil.WriteNotFoundError(w, string(result.Reason))
	case access.ReasonForbidden, access.ReasonInvariantViolation:
		httputil.WriteForbidden(w, string(result.Reason))
	default:
		httputil.WriteInternalError(w)
	}
}
