// Package version reports the build version of the transcriptor binary.
package version

import (
	"os/exec"
	"strings"

	"golang.org/x/mod/semver"
)

// Set at build time with -ldflags "-X .../internal/version.Version=...".
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string, appending a git-derived suffix
// when the binary is run from inside a git repository whose HEAD is not on
// a release tag.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Canonical converts a version such as "1.2.0", "v1.2" or "1.2.0-3-gabc"
// into the canonical semver form. It returns "" when v is not valid semver.
func Canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

// Newer reports whether candidate is a strictly greater release than current.
// Invalid versions never compare as newer.
func Newer(candidate, current string) bool {
	c, cur := Canonical(candidate), Canonical(current)
	if c == "" {
		return false
	}
	if cur == "" {
		return true
	}
	return semver.Compare(c, cur) > 0
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := gitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func gitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
