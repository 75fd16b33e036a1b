// Package server provides the local status server for long-running sessions.
//
// The status server is started by the chat command when metrics are
// enabled. It listens on a loopback address by default and exposes the
// Prometheus collector next to liveness, readiness and key pool routes:
//
//	srv := server.NewServer(server.Config{ListenAddress: "127.0.0.1:9090"},
//	    engine.Pools(), collector, logger)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
//
// Readiness reports 503 while any provider has every key marked exhausted,
// which lasts until a rate limit cooldown or a scheduled reset clears the
// marks, or while any check added with RegisterCheck fails.
package server
