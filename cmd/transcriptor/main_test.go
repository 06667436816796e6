package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DonMrMango/transcriptor/internal/cli"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"transcriptor\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New("requires at least 2 arg(s), only received 1")))
	require.False(t, shouldPrintUsageHint(errors.New(`invalid page range "3-1": start is after end`)))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "transcriptor", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "transcriptor", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "transcriptor transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "transcriptor pdf merge", helpHintTarget(root, []string{"pdf", "merge", "-o", "x.pdf"}))
	require.Equal(t, "transcriptor history search", helpHintTarget(root, []string{"history", "search", "hola"}))
}
