package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errNoTag = errors.New("no tag")

func fakeGit(exact string, exactErr error, describe string, descErr error) func(...string) (string, error) {
	return func(args ...string) (string, error) {
		switch args[0] {
		case "rev-parse":
			return ".git", nil
		case "describe":
			for _, a := range args {
				if a == "--exact-match" {
					return exact, exactErr
				}
			}
			return describe, descErr
		}
		return "", errors.New("unexpected git subcommand " + args[0])
	}
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	notARepo := func(...string) (string, error) { return "", errors.New("not a git repository") }

	tests := []struct {
		name string
		base string
		git  func(...string) (string, error)
		want string
	}{
		{name: "tagged release", base: "0.1.0", git: fakeGit("v0.1.0", nil, "", nil), want: "0.1.0"},
		{name: "commits after tag", base: "0.1.0", git: fakeGit("", errNoTag, "v0.1.0-3-gabcdef", nil), want: "0.1.0-3-gabcdef"},
		{name: "dirty tree", base: "0.1.0", git: fakeGit("", errNoTag, "v0.1.0-3-gabcdef-dirty", nil), want: "0.1.0-3-gabcdef-dirty"},
		{name: "no tags", base: "0.1.0", git: fakeGit("", errNoTag, "abcdef", nil), want: "0.1.0-abcdef"},
		{name: "describe fails", base: "0.1.0", git: fakeGit("", errNoTag, "", errors.New("boom")), want: "0.1.0"},
		{name: "not a repo", base: "0.1.0", git: notARepo, want: "0.1.0"},
		{name: "empty base", base: "", git: notARepo, want: "0.0.0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, resolveVersion(tt.base, tt.git))
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	require.Equal(t, "v1.2.0", Canonical("1.2.0"))
	require.Equal(t, "v1.2.0", Canonical("v1.2"))
	require.Equal(t, "v0.1.0-3-gabc", Canonical("0.1.0-3-gabc"))
	require.Empty(t, Canonical("latest"))
	require.Empty(t, Canonical(""))
}

func TestNewer(t *testing.T) {
	t.Parallel()

	require.True(t, Newer("v0.2.0", "0.1.0"))
	require.True(t, Newer("0.1.0", "0.1.0-3-gabcdef"))
	require.False(t, Newer("0.1.0", "0.1.0"))
	require.False(t, Newer("0.0.9", "0.1.0"))
	require.False(t, Newer("nightly", "0.1.0"))
	require.True(t, Newer("0.1.0", "dev"))
}
