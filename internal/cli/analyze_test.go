package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-alerts/internal/analysis"
)

func TestParseAnalyzeArgs(t *testing.T) {
	opts, err := parseAnalyzeArgs([]string{"corp-", "grupo", "ResourceGroupName"})
	require.NoError(t, err)
	assert.Equal(t, "corp-", opts.Prefix)
	assert.Equal(t, analysis.TypeGroup, opts.Type)
	assert.Equal(t, "ResourceGroupName", opts.GroupingKey)

	opts, err = parseAnalyzeArgs([]string{"corp-", "subscription"})
	require.NoError(t, err)
	assert.Equal(t, analysis.TypeSubscription, opts.Type)
	assert.Empty(t, opts.GroupingKey)

	_, err = parseAnalyzeArgs([]string{"corp-", "tag"})
	require.Error(t, err)

	_, err = parseAnalyzeArgs([]string{"corp-", "region", "x"})
	assert.True(t, errors.Is(err, analysis.ErrUnknownAnalysisType))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"analyze", "watch", "simulate", "tags", "version"} {
		assert.True(t, names[want], want)
	}
}
