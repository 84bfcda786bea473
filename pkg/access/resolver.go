package access

import (
	"context"
	"time"
)

// Resolver computes the effective rights of a caller on a task by merging
// the three authorization channels: ownership, team role, direct share.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over the given store
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the decision for (caller, task id). The task fetch and
// all channel lookups run in one snapshot. A missing task resolves to zero
// rights; the gate decides how that renders.
func (r *Resolver) Resolve(ctx context.Context, callerID, taskID int64) (*Decision, error) {
	var decision *Decision
	err := r.store.inSnapshot(ctx, func(q querier) error {
		task, err := getTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			decision = noRights()
			return nil
		}
		decision, err = resolveTask(ctx, q, callerID, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// resolveTask evaluates the three channels against one snapshot and unions
// the grants. Evaluation order is fixed: ownership short-circuits, the team
// and share channels each contribute independently, and the union is the
// per-action OR of the contributions. CanShare is the one exception to the
// union: only ownership ever grants it.
func resolveTask(ctx context.Context, q querier, callerID int64, task *Task) (*Decision, error) {
	// Channel 1: ownership. Authoritative; no other channel can weaken it.
	if task.OwnerID == callerID {
		return &Decision{
			CanView:   true,
			CanEdit:   true,
			CanDelete: true,
			CanShare:  true,
			Channels:  []Channel{ChannelOwner},
			CheckedAt: time.Now(),
		}, nil
	}

	decision := &Decision{CheckedAt: time.Now()}

	// Channel 2: team role. Only reached for callers who do not own the
	// task, so the member role's edit-own-tasks right never applies here;
	// owner and admin roles grant edit/delete over any team task, member
	// and viewer grant view only.
	if task.TeamID != nil {
		membership, err := getMembership(ctx, q, *task.TeamID, callerID)
		if err != nil {
			return nil, err
		}
		if membership != nil {
			actions := TeamActions(membership.Role)
			contributed := false
			if actions.Has(ActionView) {
				decision.CanView = true
				contributed = true
			}
			if actions.Has(ActionEditAnyTask) {
				decision.CanEdit = true
				contributed = true
			}
			if actions.Has(ActionDeleteAnyTask) {
				decision.CanDelete = true
				contributed = true
			}
			if contributed {
				decision.Channels = append(decision.Channels, ChannelTeam)
			}
		}
	}

	// Channel 3: direct share.
	share, err := getShare(ctx, q, task.ID, callerID)
	if err != nil {
		return nil, err
	}
	if share != nil {
		actions := ShareActions(share.Permission)
		contributed := false
		if actions.Has(ActionView) {
			decision.CanView = true
			contributed = true
		}
		if actions.Has(ActionEdit) {
			decision.CanEdit = true
			contributed = true
		}
		if contributed {
			decision.Channels = append(decision.Channels, ChannelShare)
		}
	}

	if len(decision.Channels) == 0 {
		decision.Channels = []Channel{ChannelNone}
	}
	return decision, nil
}

func noRights() *Decision {
	return &Decision{
		Channels:  []Channel{ChannelNone},
		CheckedAt: time.Now(),
	}
}
