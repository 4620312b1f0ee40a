package printer

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects printer output for the duration of a test
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		SetOutput(os.Stdout, os.Stderr)
		color.NoColor = noColor
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		captureOutput(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("single suggestion printed plainly", func(t *testing.T) {
		_, errOut := captureOutput(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		assert.Contains(t, errOut.String(), "Try this fix")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, errOut := captureOutput(t)
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		assert.Contains(t, errOut.String(), "Either:")
		assert.Contains(t, errOut.String(), "  2. Second option")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, errOut := captureOutput(t)
	context := map[string]string{
		"Track":   "/tracks/feature-xyz",
		"Backend": "file",
	}
	err := ErrorWithContext("Test Error", "Explanation", context, []string{"Fix it"})
	require.Error(t, err)
	require.Equal(t, "Test Error", err.Error())

	output := errOut.String()
	assert.Less(t, bytes.Index([]byte(output), []byte("Backend")), bytes.Index([]byte(output), []byte("Track")),
		"context keys are sorted")
}

func TestSuccessAndWarning(t *testing.T) {
	out, _ := captureOutput(t)

	Success("done\n")
	Success("✓ already prefixed\n")
	Warning("careful\n")
	Step("next\n")

	output := out.String()
	assert.Contains(t, output, "✓ done")
	assert.NotContains(t, output, "✓ ✓")
	assert.Contains(t, output, "⚠️  careful")
	assert.Contains(t, output, "→ next")
}

func TestWriteSuggestions(t *testing.T) {
	var buf bytes.Buffer
	writeSuggestions(&buf, nil)
	assert.Empty(t, buf.String())

	writeSuggestions(&buf, []string{"a", "b", "c"})
	assert.Equal(t, "\nEither:\n  1. a\n  2. b\n  3. c\n", buf.String())
}

func TestErrorWithContext_NoExplanation(t *testing.T) {
	_, errOut := captureOutput(t)
	err := ErrorWithContext("Lock held", "", map[string]string{"Resource": "a.go"}, nil)
	require.Error(t, err)
	assert.Equal(t, "Lock held\n\n\n  Resource: a.go\n", errOut.String())
}
