// Package tasks tracks independent image and video generation requests.
//
// A Tracker turns each Submit into a Task with its own lifecycle (pending,
// generating, then exactly one of completed, failed or cancelled). Dispatch
// is bounded by a weighted semaphore and a token-bucket rate limiter, results
// for identical requests are served from a TTL cache, and every change is
// published on an events.Bus. Callers only ever see Task values copied under
// the tracker's lock, so a snapshot is never torn.
//
// Generation itself is delegated to a Backend: SimulatedBackend for local
// runs and tests, HTTPBackend for a remote generation service.
package tasks
