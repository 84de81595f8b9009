// Package env holds build metadata, set at link time with
//
//	-ldflags "-X github.com/ostafen/sigcrawl/internal/env.Version=..."
package env

const AppName = "sigcrawl"

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
