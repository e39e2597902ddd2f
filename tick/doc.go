/*
Package tick provides a deferred task queue.

A task handed to Defer runs after the current synchronous unit of work has
returned, before the next externally observable event. Queue never runs tasks on
its own goroutine: the owner flushes it at the points where a consumer observes
state, such as reads. A caller can attach listeners right after scheduling work
without missing anything.
*/
package tick
