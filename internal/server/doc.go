// Package server provides the HTTP server for the coinwatch dashboard and
// API.
//
// It serves the embedded dashboard at "/", the current board at
// "/api/board", live board streams over Server-Sent Events ("/api/sse")
// and websockets ("/api/ws"), the watch list and portfolio mutations, and
// two read-through market endpoints: price history and a cached top-coins
// listing.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
