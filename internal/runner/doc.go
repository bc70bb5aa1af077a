// Package runner sends one conversation turn to the Anthropic Messages API and
// turns the reply back into a persisted memory.Message.
//
// Invariant:
//   - system messages never travel in the messages array; they are sent as the
//     request's system prompt.
//   - content blocks the REPL cannot render (anything but text) are kept on the
//     message under Extra["blocks"] and replayed verbatim on the next request.
//
// Flow:
//
//	[]memory.Message -> MessageNewParams -> API -> assistant memory.Message
package runner
