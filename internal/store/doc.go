// Package store holds the latest analysis job snapshots and fans them out to
// subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Job]: Storage representation of an evidence item's analysis
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers miss updates rather than block the trackers).
package store
