// ABOUTME: Build and product identification
// ABOUTME: Reported in logs, the TUI header and remote-control status replies
package version

const (
	Product      = "tonestream"
	Manufacturer = "Resonate"
)

// Version is stamped by release builds with -ldflags "-X .../internal/version.Version=..."
var Version = "0.3.0"

// String returns "product version"
func String() string {
	return Product + " " + Version
}
