package delivery

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRecord(t *testing.T) {
	var r Result
	r.Record(Detail{To: "a", Chunk: 1, ID: "SM1"})
	assert.Equal(t, StatusOK, r.Status)

	r.Record(Detail{To: "b", Chunk: 1, Error: "boom"})
	assert.Equal(t, StatusPartialFail, r.Status)
	assert.Equal(t, 1, r.Sent)
	assert.Equal(t, 1, r.Failed)
	assert.True(t, r.Delivered())

	assert.False(t, Skipped("no recipients").Delivered())
}

func TestWriterSend(t *testing.T) {
	var buf bytes.Buffer
	r, err := Writer{Out: &buf}.Send(context.Background(), "digest body")
	require.NoError(t, err)
	assert.Equal(t, "digest body\n", buf.String())
	assert.Equal(t, 1, r.Sent)
}
