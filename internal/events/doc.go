// Package events is the notification bus shared by the workflow engine and
// the generation task tracker.
//
// Producers call Publish; the bus stamps a sequence number and hands the event
// to every subscriber's private queue. Each subscription delivers on its own
// goroutine, so observers never run on the producer's call stack, events for
// one producer arrive in the order they were committed, and independent
// subscribers cannot block one another.
package events
