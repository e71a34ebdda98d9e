// Package shutdown coordinates process termination.
//
// WithSignals derives a context that is cancelled on SIGINT or SIGTERM, so
// long-running commands stop cleanly. A second signal exits at once.
//
// Handler collects cleanup hooks and runs them once, newest first, under
// a deadline:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(store.Close)
//	defer h.Shutdown()
package shutdown
