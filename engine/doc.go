// Package engine implements the streaming orchestration core: it turns a user
// query plus conversation history into a sequence of model-driven tool-call
// decisions, dispatches the chosen agents over HTTP, and publishes the
// resulting event stream.
//
// A session moves through Idle, Deciding, Invoking, Responding and Done, with
// Aborted reachable from any state on cancellation and Failed reachable when
// the decision model is unusable even after the keyword fallback. Exactly one
// terminal event (Done or Error) closes every session stream.
package engine
