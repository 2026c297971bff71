package build

// Set at link time via -ldflags "-X github.com/storacha/devchain/pkg/build.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)
