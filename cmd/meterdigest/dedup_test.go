package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batch = `[
  {"url": "https://www.reuters.com/world/egypt-prepaid-meters?utm_source=rss", "title": "Egypt to install 5 million prepaid electricity meters", "source": "Reuters", "provider": "NewsAPI"},
  {"url": "https://www.reuters.com/world/egypt-prepaid-meters", "title": "Egypt to install 5 million prepaid electricity meters (Reuters)", "source": "Reuters", "provider": "Google News"},
  {"url": "https://www.the-star.co.ke/kplc-smart-meters", "title": "Kenya Power begins smart meter rollout in Nairobi", "source": "The Star", "provider": "Google News"}
]`

func runDedup(t *testing.T, args ...string) dedupOutput {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs(append([]string{"dedup"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var out dedupOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	return out
}

func TestDedupCommand(t *testing.T) {
	input := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(input, []byte(batch), 0o644))

	out := runDedup(t, "--input", input)

	require.Len(t, out.Groups, 2)
	assert.Equal(t, []int{0, 1}, out.Groups[0].Indices)
	assert.Equal(t, "NewsAPI", out.Groups[0].Representative.Provider)
	assert.Equal(t, []int{2}, out.Groups[1].Indices)
	assert.Equal(t, 3, out.Stats.Input)
	assert.Equal(t, 1, out.Stats.Duplicates)
}

func TestDedupCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.json")
	output := filepath.Join(dir, "groups.json")
	require.NoError(t, os.WriteFile(input, []byte(batch), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"dedup", "-i", input, "-o", output})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var out dedupOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Groups, 2)
}

func TestDedupCommandRejectsBadInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"not": "an array"}`), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"dedup", "--input", input})
	assert.Error(t, cmd.ExecuteContext(context.Background()))

	require.NoError(t, os.WriteFile(input, []byte(batch), 0o644))
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"dedup", "--input", input, "--low", "0.9", "--high", "0.5"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
