// Package audit provides the internal audit event model, sink interfaces,
// and the asynchronous dispatcher used by the engine. Sinks are re-exported
// through the root package; the dispatcher is wired by the Builder and
// never exposed.
//
// The dispatcher guarantees that Emit never blocks the request path longer
// than the caller's context allows, and that Close drains buffered events
// before returning.
package audit
