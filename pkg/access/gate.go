package access

import (
	"context"
)

// Gate is the enforcement wrapper in front of the resolver. It turns a
// decision into an outcome, applying the information-leakage policy: a
// caller with no visibility gets DeniedNotFound for every action, so a
// denial's shape never discloses that the resource exists. Only a caller
// who can already view the task ever sees DeniedForbidden.
//
// The policy is uniform across every resource kind the gate protects;
// resource-specific denial shapes are themselves a leak.
type Gate struct {
	store *Store
}

// NewGate creates a gate over the given store
func NewGate(store *Store) *Gate {
	return &Gate{store: store}
}

// Authorize decides whether the caller may perform action on the task.
// The task fetch and the channel reads share one snapshot. A missing task
// and an invisible task are indistinguishable to the caller.
func (g *Gate) Authorize(ctx context.Context, callerID, taskID int64, action Action) (Outcome, error) {
	var outcome Outcome
	err := g.store.inSnapshot(ctx, func(q querier) error {
		task, err := getTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			outcome = OutcomeDeniedNotFound
			return nil
		}

		decision, err := resolveTask(ctx, q, callerID, task)
		if err != nil {
			return err
		}
		outcome = outcomeFor(decision, action)
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// outcomeFor maps a decision and a required action to an outcome
func outcomeFor(decision *Decision, action Action) Outcome {
	if decision.Grants(action) {
		return OutcomeAllowed
	}
	if !decision.CanView {
		return OutcomeDeniedNotFound
	}
	// Existence is already disclosed by the view grant.
	return OutcomeDeniedForbidden
}
