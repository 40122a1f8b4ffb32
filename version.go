package telemetry

// Version is the go-flowtel release. Release builds override it with
// -ldflags "-X github.com/ekristen/go-flowtel.Version=...".
var Version = "0.1.0"
