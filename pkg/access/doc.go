// Package access implements permission resolution and enforcement for the
// Taskdeck task manager.
//
// # Overview
//
// A task can be reachable through three overlapping channels: the caller
// owns it, the caller belongs to the team it lives in, or the task was
// shared with the caller directly. This package resolves those channels
// into one effective set of rights per (caller, task) pair and enforces
// that set at the HTTP boundary. It also guards every membership and share
// mutation so the structural invariants of teams (exactly one owner, no
// orphaned roles) cannot be violated through the API.
//
// # Architecture
//
// The package consists of four components layered over one store:
//
//  1. Resolver: computes a Decision (the union of rights from all channels)
//  2. Gate: answers allow/deny for one action, with the 404/403 distinction
//  3. Guard: validates and applies membership and share mutations
//  4. GateMiddleware: wires the gate into gorilla/mux routes
//
// # Channels
//
// Ownership is absolute. The task's owner holds every right, including the
// exclusive right to share it:
//
//	decision, _ := resolver.Resolve(ctx, ownerID, taskID)
//	// decision.CanView, CanEdit, CanDelete, CanShare are all true
//
// Team membership grants rights on every task in the team, by role:
//
//	owner, admin   - view, edit, delete
//	member, viewer - view only
//
// A direct share grants at most view and edit, never delete and never
// onward sharing:
//
//	view share - view
//	edit share - view, edit
//
// The channels are unioned: adding a channel never removes a right, and a
// weak share cannot mask stronger team access. A role string the resolver
// does not recognize contributes nothing; unknown never means allowed.
//
// # The 404/403 distinction
//
// The gate maps a decision to one of three outcomes:
//
//	OutcomeAllowed         - the action proceeds
//	OutcomeDeniedNotFound  - caller cannot view the task (HTTP 404)
//	OutcomeDeniedForbidden - caller can view it but lacks the action (HTTP 403)
//
// A caller with no channel to a task receives the same 404 as for a task
// that does not exist, so probing IDs reveals nothing. The split is applied
// uniformly; no handler hand-rolls its own status mapping.
//
// # Guarded mutations
//
// The guard validates every membership and share mutation before applying
// it, inside the same transaction that holds the team row lock:
//
//	result, err := guard.AddMember(ctx, callerID, teamID, userID, access.RoleMember)
//	if err != nil {
//		// storage failure
//	}
//	if !result.Allowed {
//		// result.Reason is one of the closed DenialReason kinds
//	}
//
// The rules it enforces:
//
//   - owners and admins invite; an invited role is never owner
//   - only the owner changes roles, and never to or from owner
//   - admins remove members and viewers but not other admins; only the
//     owner removes admins; nobody removes the owner
//   - any non-owner member may leave; the owner cannot leave their own team
//   - only the owner deletes the team
//   - only a task's owner creates or revokes shares on it; re-sharing with
//     the same user replaces the permission
//
// GuardMutation runs the same rules as a check without applying anything,
// for callers that want a pre-flight answer.
//
// # Consistency
//
// All channel reads for one decision execute inside a single read
// transaction, so a decision never mixes states from before and after a
// concurrent mutation. Mutations against one team serialize on the team
// row. The resolver holds no cache; every decision reflects live state.
//
// # Database Schema
//
// The package owns six tables: users, teams, team_members, tasks,
// task_shares, and team_invitations. team_members carries a partial unique
// index restricting each team to one owner row. Migrations are provided in
// migrations.go:
//
//	err := access.RunMigrations(ctx, db)
//
// # HTTP Integration
//
// Handlers register the mutation and check routes, and the middleware
// protects task routes elsewhere in the API:
//
//	handlers := access.NewHandlers(store, auditLogger)
//	handlers.RegisterRoutes(router)
//
//	gm := access.NewGateMiddleware(handlers.Gate())
//	router.Handle("/tasks/{id}",
//		gm.RequireTaskAction(access.ActionEdit)(updateTaskHandler),
//	).Methods("PUT")
//
// # Testing
//
// Unit tests run against an in-memory sqlite database via
// NewStoreWithTxOptions, which drops the Postgres-only transaction options
// and row locks:
//
//	store := access.NewStoreWithTxOptions(db, nil, nil, false)
//
// Integration tests run the same suites against a real Postgres.
//
// # Related Packages
//
//   - pkg/teams: team lifecycle and invitations
//   - pkg/tasks: task CRUD behind the gate
//   - pkg/audit: audit logging of decisions and guarded mutations
//   - pkg/middleware: request authentication and rate limiting
package access
