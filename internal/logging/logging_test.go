// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.level, &bytes.Buffer{}).GetLevel())
		})
	}
}

func TestNewWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)
	log.WithField("task_id", "abc123").Warn("dangling source")

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "task_id=abc123")
	assert.Contains(t, out, "dangling source")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	log := New("info", &bytes.Buffer{})
	assert.Same(t, log, OrDiscard(log))
}
