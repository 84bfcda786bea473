// Package async provides safe goroutine execution for fire-and-forget
// background work.
//
// SafeGo runs a function in a goroutine with panic recovery, a timeout,
// and error logging, detached from the caller's cancellation so the work
// survives the end of the request that spawned it:
//
//	async.SafeGo(r.Context(), 5*time.Second, "audit write", func(ctx context.Context) error {
//		return auditLogger.Log(ctx, event)
//	})
//
// Handlers use it for audit-trail writes so a slow or failing audit store
// never delays a response.
package async
