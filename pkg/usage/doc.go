// Package usage keeps a ledger of finished requests: provider, model, token
// counts, retries, latency and outcome.
//
// Two backends implement Store:
//
//   - MemoryStore: records live for the life of the process
//   - SQLiteStore: durable storage in WAL mode, using either the pure Go
//     modernc.org/sqlite driver ("sqlite") or the cgo
//     github.com/mattn/go-sqlite3 driver ("sqlite3")
//
// Totals aggregates the ledger per provider, WriteCSV and WriteJSON export
// records, and Pruner enforces a retention period on a cron schedule.
package usage
