package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" DEBUG ", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestWithRequestID_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevLevel := Logger.Out, Logger.Level
	Logger.SetOutput(&buf)
	Logger.SetLevel(logrus.InfoLevel)
	t.Cleanup(func() {
		Logger.SetOutput(prevOut)
		Logger.SetLevel(prevLevel)
	})

	WithRequestID("req-1").WithField("score", 0.5).Info("analysis completed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "analysis completed", entry["msg"])
	assert.Equal(t, 0.5, entry["score"])
}
