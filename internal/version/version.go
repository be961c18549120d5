package version

// Version is the current version of the Room Client.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/coremeet/roomclient/internal/version.Version=v1.0.0'"
var Version = "dev"
