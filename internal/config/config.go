package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultRedisURL is empty; live signals stay local to the instance without it.
	DefaultRedisURL = ""

	// DefaultFanoutConcurrency bounds how many recipients one dispatch serves at once.
	DefaultFanoutConcurrency = 8

	// DefaultAPIURL is where the watch command finds the server.
	DefaultAPIURL = "http://localhost:8080"

	// StreamKeepalive is the interval between SSE keepalive comments.
	StreamKeepalive = 25 * time.Second

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 10 * time.Second

	// WatchReconnectDelay is the pause before the watch command reopens a dropped stream.
	WatchReconnectDelay = 3 * time.Second
)
