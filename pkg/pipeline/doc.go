// Package pipeline records the bookkeeping around each dispatched request.
//
// A Pipeline is a decorator over the dispatch engine: it assigns a request
// ID, measures elapsed time, copies the retry count, fills in token counts
// (estimating them on the non-streaming path when the provider reports
// none), records token metrics and appends a row to the usage ledger. Every
// retry and rotation decision stays in package dispatch.
//
//	p := pipeline.New(engine, pipeline.WithStore(store))
//	rc, err := p.Call(ctx, pipeline.Request{
//	    Request: dispatch.Request{Provider: "google", Messages: msgs},
//	    Origin:  "ask",
//	})
package pipeline
