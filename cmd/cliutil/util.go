package cliutil

import (
	"fmt"
	"io"

	"github.com/labstack/gommon/color"

	"github.com/storacha/devchain/pkg/build"
	"github.com/storacha/devchain/pkg/config/app"
)

// PrintHero prints the startup banner with the chain's RPC URL.
func PrintHero(w io.Writer, url string, networkID uint64) {
	fmt.Fprintf(w, `
%s devchain %s
%s %s
%s network %d
🚀 Ready!
`,
		color.Green("▗▄▖"), build.Version,
		color.Red("▐▌ "), url,
		color.Red("▝▀▘", color.D), networkID)
}

func PrintConfig(w io.Writer, cfg app.AppConfig) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "(ephemeral)"
	}
	fmt.Fprintln(w, "CHAIN CONFIGURATION")
	fmt.Fprintln(w, "-------------------")
	fmt.Fprintf(w, "Archive:     %s\n", cfg.Archive.Path)
	fmt.Fprintf(w, "Data Dir:    %s\n", dataDir)
	fmt.Fprintf(w, "Backend:     %s\n", cfg.Chain.Backend)
	fmt.Fprintf(w, "Network ID:  %d\n", cfg.Chain.NetworkID)
	fmt.Fprintf(w, "Smoke Test:  %t\n", cfg.SmokeTest.Enabled)
	fmt.Fprintln(w)
}
