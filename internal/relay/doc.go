// Package relay contains the topic-correlation and relay engine.
//
// The engine consumes a stream of inbound chat events and produces at most
// one transport side effect per event. A message from an end-user is
// forwarded into that user's dedicated thread inside the log channel,
// creating the thread (and its correlation in the store) lazily on first
// contact. A reply the operator posts inside a thread is resolved back to
// the owning user and delivered directly.
//
// The engine is stateless between events: the injected store.Store owns the
// durable user-to-thread mapping, and the injected Gateway performs all
// transport work. Concurrent invocation is safe; the only serialization is
// a per-user lock around first-contact thread creation, which together with
// the store's atomic SetIfAbsent guarantees at most one thread per user
// even under duplicate delivery.
//
// Failure policy: every transport or storage failure is converted at the
// point it occurs into a notice to the affected participant, and the engine
// returns to waiting for the next event. Nothing here is fatal to the
// process.
package relay
