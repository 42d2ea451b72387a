package main

// Overridden at build time with -ldflags, e.g.
//   -X main.version=1.2.3 -X main.commit=abcdef -X main.date=2026-01-01
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
