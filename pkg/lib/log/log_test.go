package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := Logger("core/test")
	Setup(&buf, LevelInfo, FormatJSON)

	l.Debug("隐藏")
	l.Info("可见", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "隐藏")
	assert.Contains(t, out, `"component":"core/test"`)
	assert.Contains(t, out, `"k":1`)
}

func TestLazyLogger_With(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(&buf, LevelDebug, FormatText)

	Logger("core/swarm").With("peer", "abc").Debug("连接")
	out := buf.String()
	assert.Contains(t, out, "component=core/swarm")
	assert.Contains(t, out, "peer=abc")
}
