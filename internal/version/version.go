package version

// Version is set at build time:
// -ldflags "-X github.com/tradekit-lab/tradekit/internal/version.Version=v1.2.3"
var Version = "dev"
