// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, abstract-type resolution and leaf serialization.
//
// # Execution model
//
// Fields are classified by schema.Field.Async. Synchronous fields resolve
// immediately through Runtime.ResolveSync and expand without adding batch
// depth. Asynchronous fields discovered at a depth are queued and resolved in
// a single Runtime.BatchResolveAsync call before the next depth starts, so a
// graph with asynchronous depth d produces exactly d batch calls.
//
// A Non-Null violation at a path sets the nearest nullable ancestor to null
// and tombstones that prefix; queued tasks under a tombstoned prefix are
// dropped before the next batch. Errors are accumulated with their response
// path and document locations, allowing partial success.
//
// # Subscriptions
//
// Executor.Subscribe resolves the single root field of a subscription
// operation into a source stream through SubscriptionRuntime.Subscribe and
// returns a ResultStream that executes the operation once per source event,
// using the event as the root value. Closing the stream cancels the context
// handed to the source, which must then close its channel.
package executor
