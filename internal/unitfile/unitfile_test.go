package unitfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUnit = `# a comment
[Interface]
Name=Shell
Jigs=main, secondary
ExecStart=/bin/sh -c "echo hi"
`

func TestParseReader(t *testing.T) {
	f, err := ParseReader(strings.NewReader(sampleUnit))
	require.NoError(t, err)

	assert.True(t, f.HasSection("Interface"))
	assert.False(t, f.HasSection("Jig"))

	value, ok := f.Value("Interface", "Name")
	require.True(t, ok)
	assert.Equal(t, "Shell", value)

	_, ok = f.Value("Interface", "Missing")
	assert.False(t, ok)

	dirs := f.Lookup("Interface")
	require.Len(t, dirs, 3)
	assert.Equal(t, "Name", dirs[0].Key)
}

func TestParseReaderStripsBOM(t *testing.T) {
	withBOM := "﻿" + sampleUnit
	f, err := ParseReader(strings.NewReader(withBOM))
	require.NoError(t, err)
	assert.True(t, f.HasSection("Interface"))
}
