package interfaceunit

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	tests := []string{
		"plain",
		"has\ttab",
		"has\nnewline",
		"has\rcarriage",
		`backslash\here`,
		"multi\t\n\r\\mix",
	}

	for _, s := range tests {
		escaped := Escape(s)
		assert.NotContains(t, escaped, "\t")
		assert.NotContains(t, escaped, "\n")
		assert.NotContains(t, escaped, "\r")
		assert.Equal(t, s, Unescape(escaped))
	}
}

func TestUnescapeUnknownSequence(t *testing.T) {
	assert.Equal(t, "x", Unescape(`\x`))
}

func TestWriteStatusMessageJig(t *testing.T) {
	var buf bytes.Buffer
	jigName := unit.NewName(unit.KindJig, "main")

	require.NoError(t, WriteStatusMessage(&buf, unitmanager.NewJigMessage(&jigName)))
	assert.Equal(t, "JIG main.jig\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteStatusMessage(&buf, unitmanager.NewJigMessage(nil)))
	assert.Equal(t, "JIG\n", buf.String())
}

func TestParseLineScenario(t *testing.T) {
	msg, ok := ParseLine("scenario full-test")
	require.True(t, ok)
	assert.Equal(t, unitmanager.ControlScenario, msg.Kind)
	assert.Equal(t, unit.NewName(unit.KindScenario, "full-test"), msg.ScenarioName)
}

func TestParseLineTestsDefaultKindQuirk(t *testing.T) {
	msg, ok := ParseLine("tests smoke")
	require.True(t, ok)
	require.NotNil(t, msg.TestsScenario)
	// Preserves the original implementation's quirk: a bare token here
	// defaults to kind "test", not "scenario".
	assert.Equal(t, unit.KindTest, msg.TestsScenario.Kind())
}

func TestParseLineBlank(t *testing.T) {
	_, ok := ParseLine("   ")
	assert.False(t, ok)
}

func TestParseLineUnknownVerb(t *testing.T) {
	msg, ok := ParseLine("frobnicate foo bar")
	require.True(t, ok)
	assert.Equal(t, unitmanager.ControlUnimplemented, msg.Kind)
	assert.Equal(t, "frobnicate", msg.UnimplementedVerb)
	assert.Equal(t, "foo bar", msg.UnimplementedArgs)
}
