package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocatalog/internal/pkg/logger"
)

func TestLogger_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("debug", &buf)

	log.Info("Variante criada.", map[string]interface{}{"sku": "X-RED-S"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Variante criada.", entry["message"])
	assert.Equal(t, "X-RED-S", entry["sku"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("warn", &buf)

	log.Debug("ignorado", nil)
	log.Info("ignorado", nil)
	log.Error("falha no repositório", errors.New("connection refused"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "connection refused")
}

func TestLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("verbose", &buf)

	log.Debug("ignorado", nil)
	log.Warn("aviso", map[string]interface{}{"k": 1})

	assert.NotContains(t, buf.String(), "ignorado")
	assert.Contains(t, buf.String(), "aviso")
}
