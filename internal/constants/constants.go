// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultConfigFile     = "utuputki.toml"
	DefaultDBFile         = "utuputki.sqlite"
	DefaultCacheDir       = "cache"
	DefaultTempDir        = "/tmp"
	DefaultPort           = 8080
	DefaultClientTimeout  = 600 * time.Second
	DefaultMetadataMaxAge = 60 * time.Second
	DefaultVLCLogLevel    = "error"
)

// Storage tuning
const (
	// BusyTimeout is how long sqlite retries a busy database before
	// surfacing the error to the caller.
	BusyTimeout = 1 * time.Second
)

// MkvExtension is the container extension yt-dlp remuxes into when the
// selected streams do not share one.
const MkvExtension = ".mkv"
