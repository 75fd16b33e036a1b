// Package keypool manages ordered API key lists with rotation.
//
// Each provider owns one Pool. When a key is rejected (invalid, out of
// credits, rate limited) the dispatcher rotates the pool: the key is marked
// exhausted and the current pointer moves to the next key that is not.
// Marks persist until ResetExhausted clears them, either after a rate limit
// cooldown or on a ResetScheduler cron schedule.
//
// Pools are shared by every concurrent request for the provider:
//
//	registry := keypool.NewRegistry(logger)
//	pool := registry.Add("openrouter", []string{"sk-or-1", "sk-or-2"})
//
//	idx, key, ok := pool.Current()
//	// ... request fails with 401 ...
//	next, ok := pool.RotateFrom(idx, "invalid key")
package keypool
