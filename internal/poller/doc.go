// Package poller keeps a live price snapshot for a mutable watch list.
//
// This package is internal to coinwatch. A [Poller] fetches quotes for every
// tracked coin in one batched request, immediately on start and then on a
// fixed interval, and reconciles the results into a [State] made of a
// snapshot and a [Status].
//
// Reconciliation rules:
//
//   - At most one fetch is in flight at any time.
//   - [Poller.SetWatchList] drops snapshot entries for removed coins before
//     it returns, and results arriving later are filtered against the
//     current watch list, so a removed coin never reappears.
//   - Rate limiting and other failures are sticky: timer ticks stop
//     fetching until [Poller.ClearError] or [Poller.SetWatchList] is called.
//
// Users of the coinwatch library should not need to interact with this
// package directly.
package poller
