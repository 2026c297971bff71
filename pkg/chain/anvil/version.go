package anvil

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinVersion is the oldest anvil that loads and dumps state with --state.
const MinVersion = "v0.2.0"

var versionRe = regexp.MustCompile(`\b(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)\b`)

// ParseVersion extracts the semantic version from the output of anvil --version, which
// is "anvil 0.2.0 (...)" on older releases and "anvil Version: 1.2.3-stable" on newer ones.
func ParseVersion(output string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	m := versionRe.FindStringSubmatch(line)
	if m == nil {
		return "", fmt.Errorf("no version in %q", line)
	}
	v := "v" + m[1]
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", m[1])
	}
	return v, nil
}

// CheckVersion fails when version is older than MinVersion. Pre-release suffixes such as
// -stable or -nightly count as the release they name.
func CheckVersion(version string) error {
	if semver.Compare(semver.Canonical(strings.SplitN(version, "-", 2)[0]), MinVersion) < 0 {
		return fmt.Errorf("anvil %s is older than the supported minimum %s", version, MinVersion)
	}
	return nil
}

func binaryVersion(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("running %s --version: %w", binary, err)
	}
	return ParseVersion(string(out))
}
