package clientcli

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressLine(t *testing.T) {
	got := progressLine("Up", 50, 100, 10, 0, false)
	want := "Up [" + strings.Repeat("=", 10) + ">" + strings.Repeat(" ", 9) + "]  50.0% 50 B/100 B 10 B/s ETA 5s"
	assert.Equal(t, want, got)

	got = progressLine("Up", 100, 100, 10, 100, true)
	assert.True(t, strings.HasPrefix(got, "Up ["+strings.Repeat("=", 30)+"] 100.0% 100 B/100 B 10 B/s"))
	assert.NotContains(t, got, "ETA")
	assert.Len(t, got, 100)

	got = progressLine("Up", 500, 100, 0, 0, false)
	assert.Contains(t, got, "100.0%")
}

func TestTransferCounts(t *testing.T) {
	var out bytes.Buffer
	tr := &transfer{label: "Uploading", total: 2048, started: time.Now(), out: &out}

	data, err := io.ReadAll(tr.reader(strings.NewReader("abcdef")))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	var sink bytes.Buffer
	_, err = tr.writer(&sink).Write([]byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), tr.moved.Load())

	tr.draw(false)
	assert.Empty(t, out.String())
	tr.draw(true)
	assert.True(t, strings.HasPrefix(out.String(), "Uploading: 2.0 KB ("))
}
