package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/crytic/plum/logging/colors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddAndRemoveWriter will test to Logger.AddWriter and Logger.RemoveWriter functions to ensure that they work as expected.
func TestAddAndRemoveWriter(t *testing.T) {
	// Create a base logger
	logger := NewLogger(zerolog.InfoLevel)

	// Add three types of writers
	logger.AddWriter(os.Stdout, UNSTRUCTURED, true)
	logger.AddWriter(os.Stderr, UNSTRUCTURED, false)
	logger.AddWriter(os.Stdin, STRUCTURED, false)

	// We should expect the underlying data structures are correctly updated
	assert.Len(t, logger.unstructuredColorWriters, 1)
	assert.Len(t, logger.unstructuredWriters, 1)
	assert.Len(t, logger.structuredWriters, 1)

	// Try to add duplicate writers
	logger.AddWriter(os.Stdout, UNSTRUCTURED, true)
	logger.AddWriter(os.Stderr, UNSTRUCTURED, false)
	logger.AddWriter(os.Stdin, STRUCTURED, false)

	// Ensure that the lengths of the lists have not changed
	assert.Len(t, logger.unstructuredColorWriters, 1)
	assert.Len(t, logger.unstructuredWriters, 1)
	assert.Len(t, logger.structuredWriters, 1)

	// Remove each writer
	logger.RemoveWriter(os.Stdout, UNSTRUCTURED, true)
	logger.RemoveWriter(os.Stderr, UNSTRUCTURED, false)
	logger.RemoveWriter(os.Stdin, STRUCTURED, false)

	assert.Len(t, logger.unstructuredColorWriters, 0)
	assert.Len(t, logger.unstructuredWriters, 0)
	assert.Len(t, logger.structuredWriters, 0)
}

// TestSubLoggerCarriesContext ensures that structured output of a sub-logger includes its key-value context and
// any error passed as an argument.
func TestSubLoggerCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel)
	logger.AddWriter(&buf, STRUCTURED, false)

	subLogger := logger.NewSubLogger("module", "compilation").NewSubLogger("worker", "2")
	subLogger.Warn("compiled ", colors.Bold, "Token.sol", colors.Reset, " with warnings", errors.New("boom"))

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.EqualValues(t, "compilation", event["module"])
	assert.EqualValues(t, "2", event["worker"])
	assert.EqualValues(t, "warn", event["level"])
	assert.EqualValues(t, "boom", event["error"])
	assert.EqualValues(t, "compiled Token.sol with warnings", event["message"])
}

// TestLevelFiltering ensures events below the logger level are discarded.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.WarnLevel)
	logger.AddWriter(&buf, UNSTRUCTURED, false)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(zerolog.InfoLevel)
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

// TestDisabledColors verifies the behavior of the unstructured colored logger when colors are disabled,
// ensuring that it does not output colors when the color feature is turned off.
func TestDisabledColors(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger.AddWriter(&buf, UNSTRUCTURED, true)

	// Disable colors and log msg
	colors.DisableColor()
	defer colors.EnableColor()
	logger.Info("foo")

	// Ensure that msg doesn't include colors afterwards
	prefix := fmt.Sprintf("%s %s", colors.LEFT_ARROW, "foo")
	_, _, ok := strings.Cut(buf.String(), prefix)
	assert.True(t, ok)
}
