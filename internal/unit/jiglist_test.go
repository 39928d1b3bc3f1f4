package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJigListSupports(t *testing.T) {
	main := NewName(KindJig, "main")
	other := NewName(KindJig, "other")

	var empty JigList
	assert.True(t, empty.Supports(main), "an empty jig list is universally compatible")

	list := JigList{main}
	assert.True(t, list.Supports(main))
	assert.False(t, list.Supports(other))
}

func TestParseJigList(t *testing.T) {
	list, err := ParseJigList("main, secondary")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, NewName(KindJig, "main"), list[0])
	assert.Equal(t, NewName(KindJig, "secondary"), list[1])

	empty, err := ParseJigList("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
