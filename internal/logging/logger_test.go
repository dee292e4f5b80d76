package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/domain"
)

func TestNew_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(domain.LoggingConfig{Level: "debug"}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(domain.LoggingConfig{Level: "chatty"}).GetLevel())
}

func TestNew_Formatter(t *testing.T) {
	assert.IsType(t, &logrus.TextFormatter{}, New(domain.LoggingConfig{Format: "text"}).Formatter)
	assert.IsType(t, &logrus.JSONFormatter{}, New(domain.LoggingConfig{Format: "json"}).Formatter)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dermascan.log")
	logger := New(domain.LoggingConfig{Level: "info", Format: "json", Output: "file", Filename: path})

	logger.WithField("diagnosis_id", "abc").Info("Skin diagnosis completed")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "Skin diagnosis completed", entry["message"])
	assert.Equal(t, "abc", entry["diagnosis_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_BadOutputFallsBack(t *testing.T) {
	logger := New(domain.LoggingConfig{Output: "file"})

	assert.Equal(t, os.Stderr, logger.Out)
}
