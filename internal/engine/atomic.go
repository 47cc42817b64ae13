package engine

import "sync/atomic"

// atomicBool is a tiny wrapper over atomic.Bool with lowercase accessors,
// shared between the Supervisor and every actorRuntime to flag whether the
// in-progress shutdown is a graceful, supervisor-requested Stop (mailboxes
// get drained) or an abrupt one (mailboxes get discarded).
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) store(val bool) { b.v.Store(val) }
func (b *atomicBool) load() bool     { return b.v.Load() }

// atomicU64 is a tiny wrapper over atomic.Uint64, used for the
// never-re-emitted monitor drop counter.
type atomicU64 struct {
	v atomic.Uint64
}

func (c *atomicU64) add(delta uint64) { c.v.Add(delta) }
func (c *atomicU64) load() uint64     { return c.v.Load() }
