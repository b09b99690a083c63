// Package dashboard provides the embedded web UI assets for coinwatch.
//
// The dashboard page, its styles and its script are embedded at compile
// time, so the binary serves the UI without external files.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the coinwatch library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Watch list, holdings and history chart with inline CSS and JavaScript
//
// The page loads /api/board once, then follows /api/sse.
//
//go:embed assets/*
var Assets embed.FS
