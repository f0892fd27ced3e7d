package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/pipeline"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRunFlags(t *testing.T) {
	cfg = config.Default()
	cfg.Inputs = []config.InputConfig{{Name: "old", Path: "old.txt", Action: types.ActionBlock}}

	require.NoError(t, runCmd.Flags().Set("no-validate", "true"))
	require.NoError(t, runCmd.Flags().Set("policy", "blacklist-priority"))
	require.NoError(t, runCmd.Flags().Set("allow", "mine.txt"))
	t.Cleanup(func() {
		noValidate, policy, allowInputs = false, "", nil
	})

	require.NoError(t, applyRunFlags(runCmd, []string{"a.txt", "lists/*.txt"}))

	assert.Equal(t, []config.InputConfig{
		{Name: "a.txt", Path: "a.txt", Action: types.ActionBlock},
		{Name: "lists/*.txt", Path: "lists/*.txt", Action: types.ActionBlock},
		{Name: "mine.txt", Path: "mine.txt", Action: types.ActionAllow},
	}, cfg.Inputs)
	assert.False(t, cfg.Validation.Enabled)
	assert.Equal(t, types.PolicyBlacklist, cfg.Classify.Policy)
}

func TestApplyRunFlagsRejectsBadFormat(t *testing.T) {
	cfg = config.Default()
	format = "json"
	t.Cleanup(func() { format = "" })

	assert.Error(t, applyRunFlags(runCmd, nil))
}

func TestPrintSummary(t *testing.T) {
	res := &pipeline.Result{
		Files: []pipeline.FileReport{
			{Name: "ads.txt", Lines: 10, Kept: 7},
			{Name: "gone.txt", Err: errors.New("no such file")},
		},
		Stats:   pipeline.Stats{Block: 7, Allow: 1, Conflicts: 2},
		Elapsed: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printSummary(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "ads.txt")
	assert.Contains(t, out, "error: no such file")
	assert.Contains(t, out, "block: 7  allow: 1")
	assert.Contains(t, out, "conflicts: 2")
	assert.Contains(t, out, "(1.5s)")
}
