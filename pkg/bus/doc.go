// Package bus provides the coordination engine shared by every agent working on a
// track: an append-only event log, an expiring lock table, a worker status registry
// and the director board used to reach an approve/reject decision.
//
// # Overview
//
// There is no coordinating process. Each agent opens the track's Store and talks to
// it directly through a Client. All state lives in the store; a Client holds nothing
// between calls except its configuration, so two agents (or two goroutines) observe
// the same history as long as they read the same store.
//
// # Core Concepts
//
// Messages are immutable events appended to the queue stream. Their ordering in the
// stream is the order in which appends reached the store. Every message type has a
// typed payload (BlockedPayload, HeartbeatPayload, TaskPayload, ...) so that readers
// such as the deadlock detector can rely on the fields they need.
//
// Locks give one worker exclusive use of a resource (usually a file path) until the
// lock's expiry. Expiry is advisory: entries are not evicted, every read path checks
// expires_at against the clock. A crashed holder is reclaimed simply by its lock
// lapsing.
//
// Worker statuses are overwritten by their owning worker on every heartbeat and are
// never deleted.
//
// Assessments and votes are keyed by director. Tally counts approvals against the rest.
//
// # Store Contract
//
// The Store interface is the only dependency on the physical medium. It must provide
// atomic append per record, and atomic compare-and-swap on a single key. Two
// implementations ship with this module: a shared-filesystem store laid out as
// .message-bus/ under the track directory, and a Redis store.
//
// # Usage Example
//
//	client := bus.NewClient(store)
//
//	msg := bus.NewMessage(bus.TypeBlocked, "worker-a", &bus.BlockedPayload{
//		WaitingFor: "worker-b",
//		Resource:   "src/app.go",
//	})
//	if err := client.Append(ctx, msg); err != nil {
//		log.Fatal(err)
//	}
//
//	lock, err := client.Acquire(ctx, "src/app.go", "worker-a", 10*time.Minute)
//	if bus.IsLockHeld(err) {
//		// back off and retry later
//	}
package bus
