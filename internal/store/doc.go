// Package store holds the latest dashboard board and fans it out to live
// clients.
//
// This package is internal to coinwatch. The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Board]: JSON representation of everything the dashboard renders
//
// Subscribers receive boards via buffered channels with non-blocking sends;
// a slow subscriber misses intermediate boards rather than blocking the
// poller. Every board is complete, so missing one loses nothing.
package store
