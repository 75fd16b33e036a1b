// Package health runs readiness checks for the status server.
//
// A Checker holds named CheckFuncs. Readiness runs them concurrently, each
// bounded by the checker timeout, and reports "ready" only when all pass:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("keys", func(ctx context.Context) error {
//	    if names := pools.Exhausted(); len(names) > 0 {
//	        return fmt.Errorf("all keys exhausted: %s", strings.Join(names, ", "))
//	    }
//	    return nil
//	})
//	mux.Handle("GET /readyz", checker.ReadinessHandler())
//
// Liveness never runs checks.
package health
