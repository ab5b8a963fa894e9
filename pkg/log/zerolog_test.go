package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	scierrors "github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologProvider_ComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelDebug)

	logger := p.GetLoggerWithName("trainer").With(ModelNameKey, "RandomForestRegressor")
	logger.Info("Training started", OperationKey, OperationFit, SamplesKey, 100)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Training started", lines[0]["message"])
	assert.Equal(t, "trainer", lines[0][ComponentKey])
	assert.Equal(t, "RandomForestRegressor", lines[0][ModelNameKey])
	assert.Equal(t, OperationFit, lines[0][OperationKey])
	assert.Equal(t, float64(100), lines[0][SamplesKey])
}

func TestZerologProvider_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelWarn)
	logger := p.GetLogger()

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])

	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestZerologLogger_ErrorAttachesStackAndDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProviderWithWriter(&buf, LevelInfo).GetLogger()

	err := scierrors.NewMissingColumnError("FeatureDeriver", "state", []string{"age"})
	logger.Error("derivation failed", err, OperationKey, OperationTransform)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0][ErrAttrKey], "column 'state' not found")
	assert.NotEmpty(t, lines[0][StacktraceAttrKey])

	detail, ok := lines[0][ErrorDetailKey].(map[string]any)
	require.True(t, ok, "expected structured error detail")
	assert.Equal(t, "MissingColumnError", detail["type"])
	assert.Equal(t, "state", detail["column"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTestLogger_WithAndError(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	child := logger.With(RequestIDKey, "abc")

	child.Debug("hidden")
	child.Error("prediction failed", scierrors.New("boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "boom", entries[0][ErrAttrKey])
	assert.True(t, logger.ContainsField(RequestIDKey, "abc"))
}
