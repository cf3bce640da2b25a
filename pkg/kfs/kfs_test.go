package kfs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateParams(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   Layout
		err    bool
	}{
		{name: "empty", params: "", want: DefaultLayout()},
		{
			name:   "reed solomon shorthand",
			params: "S",
			want: Layout{Replicas: 1, Stripes: 6, RecoveryStripes: 3, StripeSize: 65536,
				StriperType: StriperRS, MinSTier: 15, MaxSTier: 15},
		},
		{
			name:   "replicas only",
			params: "2",
			want:   Layout{Replicas: 2, StriperType: StriperNone, MinSTier: 15, MaxSTier: 15},
		},
		{
			name:   "striped prefix infers striper",
			params: "1,6,3,65536",
			want: Layout{Replicas: 1, Stripes: 6, RecoveryStripes: 3, StripeSize: 65536,
				StriperType: StriperRS, MinSTier: 15, MaxSTier: 15},
		},
		{
			name:   "full with tiers",
			params: "3,0,0,0,1,2,4",
			want:   Layout{Replicas: 3, StriperType: StriperNone, MinSTier: 2, MaxSTier: 4},
		},
		{name: "zero replicas", params: "0", err: true},
		{name: "not a number", params: "x", err: true},
		{name: "bad stripe size", params: "1,6,3,1000", err: true},
		{name: "inverted tiers", params: "1,0,0,0,1,5,2", err: true},
		{name: "tier out of range", params: "1,0,0,0,1,300", err: true},
		{name: "unknown striper", params: "1,0,0,0,9", err: true},
		{name: "too many fields", params: "1,0,0,0,1,1,1,1", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCreateParams(tt.params)
			if tt.err {
				require.Error(t, err)
				assert.ErrorIs(t, err, EINVAL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrnoCodes(t *testing.T) {
	assert.Equal(t, 0, Code(nil))
	assert.Equal(t, -2, Code(ENOENT))
	assert.Equal(t, -17, Code(fmt.Errorf("mkdir /a: %w", EEXIST)))
	assert.Equal(t, -int(EIO), Code(errors.New("boom")))

	assert.NoError(t, FromCode(3))
	assert.ErrorIs(t, FromCode(-39), ENOTEMPTY)

	assert.Equal(t, "No such file or directory", Strerror(-2))
	assert.Equal(t, "Success", Strerror(0))
	assert.Equal(t, "unknown error 4242", Strerror(-4242))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/a/b", Resolve("/a", "b"))
	assert.Equal(t, "/b", Resolve("/a", "/b/"))
	assert.Equal(t, "/", Resolve("/a", ".."))
	assert.Equal(t, "/a", Resolve("/a", ""))
	assert.Equal(t, "/x", Resolve("", "x"))

	dir, name := Split("/a/b")
	assert.Equal(t, "/a", dir)
	assert.Equal(t, "b", name)
	dir, name = Split("/")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "", name)
}

func TestAttrCache(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewAttrCache(10 * time.Second)
	c.now = func() time.Time { return now }

	c.Put("/a", Attr{Filename: "a", Size: 1})
	c.Put("/a/b", Attr{Filename: "b"})
	c.Put("/ab", Attr{Filename: "ab"})

	got, ok := c.Get("/a")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Size)

	c.Invalidate("/a")
	_, ok = c.Get("/a/b")
	assert.False(t, ok)
	_, ok = c.Get("/ab")
	assert.True(t, ok, "sibling with shared prefix must survive")

	now = now.Add(11 * time.Second)
	_, ok = c.Get("/ab")
	assert.False(t, ok)

	c.SetTTL(0)
	c.Put("/c", Attr{})
	assert.Equal(t, 0, c.Len())
}
