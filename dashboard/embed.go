// Package dashboard provides the embedded web UI assets for InspectWatch.
//
// The dashboard HTML, CSS and JavaScript are embedded at compile time so the
// inspectwatch binary can be deployed on its own.
//
// The embedded assets are served by the server package at the root path ("/").
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Analysis dashboard with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
