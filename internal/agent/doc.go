// Package agent contains the core messaging runtime. An Agent owns an inbox
// and an outbox bus, a set of periodic Behaviors and a set of reactive
// MessageHandlers; it drives the per-behavior schedulers and the single
// dispatch loop, isolates collaborator failures at the runtime boundary, and
// manages the run/stop lifecycle. Two agents can be cross-wired with Connect
// to form a closed conversational loop.
package agent
