// Package relay implements the command relay at the heart of taskrelay.
//
// The relay sits between automation callers and a poll-only executor (such
// as a browser extension) that cannot be called into directly. Callers
// submit commands; the executor repeatedly polls for work, performs it, and
// posts results back. The relay pairs each result with the caller that is
// still waiting for it, bounded by a deadline.
//
// # Architecture
//
// The package is built around three cooperating pieces:
//
//  1. Mailbox: a single-slot holder for the one command awaiting pickup.
//     The system is designed around a single in-flight command; a submit
//     that displaces an uncollected command is logged.
//  2. Rendezvous: an id-keyed table of waiters. Each waiter owns a buffered
//     completion channel; posting a result resolves exactly the waiter
//     registered for that command id. Results arriving for an id whose
//     waiter already timed out are dropped, never delivered to an
//     unrelated caller.
//  3. Timeout governor: every wait races its completion channel against a
//     deadline timer. On expiry the caller receives a structured timeout
//     result and the id is marked abandoned so a late result can be
//     recognized and discarded.
//
// Relay-local tools (ping, relay_status) are answered synchronously from a
// dispatch registry and never occupy the mailbox.
package relay
