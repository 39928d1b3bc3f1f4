package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantKind Kind
		wantID   string
		wantErr  bool
	}{
		{name: "jig file", path: "/units/main.jig", wantKind: KindJig, wantID: "main"},
		{name: "interface file", path: "/units/shell.interface", wantKind: KindInterface, wantID: "shell"},
		{name: "unknown extension", path: "/units/readme.txt", wantErr: true},
		{name: "no id component", path: "/units/.jig", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := FromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, name.Kind())
			assert.Equal(t, tt.wantID, name.ID())
		})
	}
}

func TestFromString(t *testing.T) {
	name, err := FromString("MyJig.JIG", KindTest)
	require.NoError(t, err)
	assert.Equal(t, KindJig, name.Kind())
	assert.Equal(t, "myjig", name.ID())

	name, err = FromString("bare-test", KindTest)
	require.NoError(t, err)
	assert.Equal(t, KindTest, name.Kind())
	assert.Equal(t, "bare-test", name.ID())

	_, err = FromString("", KindTest)
	assert.Error(t, err)
}

func TestFromList(t *testing.T) {
	names, err := FromList("one, two.scenario three", KindTest)
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.Equal(t, NewName(KindTest, "one"), names[0])
	assert.Equal(t, NewName(KindScenario, "two"), names[1])
	assert.Equal(t, NewName(KindTest, "three"), names[2])
}

func TestNameString(t *testing.T) {
	n := NewName(KindJig, "Main")
	assert.Equal(t, "main.jig", n.String())
}
