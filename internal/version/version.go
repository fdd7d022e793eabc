// Package version holds the build-time version string printed by -v on
// both flowgen and flowrelay.
package version

// Version is overridden at build time via -ldflags "-X ...Version=...".
var Version = "dev"
