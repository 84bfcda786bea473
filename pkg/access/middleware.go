package access

import (
	"net/http"

	"github.com/quillback/taskdeck/pkg/httputil"
	"github.com/quillback/taskdeck/pkg/middleware"
	"github.com/quillback/taskdeck/pkg/observability"
)

// GateMiddleware provides middleware for per-task authorization checks.
type GateMiddleware struct {
	gate    *Gate
	metrics *observability.Metrics
}

// NewGateMiddleware creates a new gate middleware
func NewGateMiddleware(gate *Gate) *GateMiddleware {
	return &GateMiddleware{
		gate: gate,
	}
}

// RequireTaskAction creates middleware that authorizes the caller for the
// given action on the task named by the {id} path variable. A caller who
// cannot see the task gets 404; a caller who can see it but lacks the
// action gets 403. The two are never mixed up, so a denied response never
// reveals whether the task exists.
func (gm *GateMiddleware) RequireTaskAction(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := middleware.GetIdentity(r)
			if identity == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			taskID, ok := httputil.ParsePathInt64OrError(w, r, "id")
			if !ok {
				return
			}

			outcome, err := gm.gate.Authorize(r.Context(), identity.UserID, taskID, action)
			if err != nil {
				httputil.WriteInternalError(w)
				return
			}
			if gm.metrics != nil {
				gm.metrics.AuthzDecisionsTotal.WithLabelValues(string(action), string(outcome)).Inc()
			}

			switch outcome {
			case OutcomeAllowed:
				next.ServeHTTP(w, r)
			case OutcomeDeniedNotFound:
				httputil.WriteNotFoundError(w, "task not found")
			case OutcomeDeniedForbidden:
				httputil.WriteForbidden(w, "insufficient permissions")
			default:
				httputil.WriteInternalError(w)
			}
		})
	}
}
