// Package core provides the foundational domain types used across the
// agentrelay runtime. It defines:
//
//   - Messages (the fixed JSON wire protocol spoken with external agents)
//   - Orchestration events (the closed tagged union streamed to clients)
//   - EventChannel (a bounded multi-producer / single-consumer event queue
//     with exactly-once terminal semantics)
//   - Reply (the composed answer plus bookkeeping returned to callers)
//   - The shared error taxonomy
//
// The package intentionally keeps implementation concerns (HTTP transport,
// engine orchestration, model providers) out of scope so every other package
// can depend on it without cycles.
package core
