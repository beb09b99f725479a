// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Inbound WebSocket control messages per connection per window
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// History endpoint limits
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	// Max request body for session start
	MaxBodyBytes = 64 << 10
)
