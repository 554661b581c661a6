// Package model defines the provider-agnostic decision contract used by the
// orchestration engine to turn conversation history plus tool specifications
// into a next action (text, tool calls, or a streamed mix of both).
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the engine remains decoupled from vendor SDKs. KeywordModel is
// the deterministic degraded-mode strategy selected when the provider fails.
package model
