//go:build prod

package build

import "time"

// Set through -ldflags "-X github.com/bronystylecrazy/tokenbus/build.Version=..." on release builds.
var Name = "tokenbus"
var Version = "v0.0.0-production"
var BuildDate = time.Now().Format("2006-01-02 15:04:05")
var Commit = "unknown"
var Mode = ModeProduction
