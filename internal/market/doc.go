// Package market provides access to the upstream price API and the small
// value types shared by the rest of coinwatch.
//
// This package is internal to coinwatch. The main components are:
//
//   - [Client]: CoinGecko REST client with per-request timeouts and size limits
//   - [Quote]: live values for one coin across several currencies
//   - [PricePoint]: one sample of a historical price chart
//   - [WatchList]: ordered set of normalized coin identifiers
//   - [Aliases]: ticker-to-identifier lookup applied before insertion
//
// Errors returned by [Client] can be classified with [errors.Is] against
// [ErrRateLimited] and [ErrEmptyPayload], or with [errors.As] against
// [*StatusError].
package market
