// Package unit defines the identity, status, and error vocabulary shared by
// every unit kind the library and manager deal with.
package unit

import (
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
)

// Kind identifies which of the six unit families a name belongs to, plus the
// reserved Internal sentinel that never participates in a rescan.
type Kind string

const (
	KindJig       Kind = "jig"
	KindInterface Kind = "interface"
	KindLogger    Kind = "logger"
	KindTrigger   Kind = "trigger"
	KindTest      Kind = "test"
	KindScenario  Kind = "scenario"
	KindInternal  Kind = "internal"
)

// Kinds lists every kind that participates in dirty-set bookkeeping, in the
// order the Rescan Engine's load phases run.
var Kinds = []Kind{KindJig, KindInterface, KindLogger, KindTrigger, KindTest, KindScenario}

func kindFromExtension(ext string) (Kind, bool) {
	switch Kind(strings.ToLower(ext)) {
	case KindJig, KindInterface, KindLogger, KindTrigger, KindTest, KindScenario:
		return Kind(strings.ToLower(ext)), true
	default:
		return "", false
	}
}

// Name is the (kind, id) pair identifying a unit. The zero value is not a
// valid name.
type Name struct {
	kind Kind
	id   string
}

// NewName builds a Name directly, lower-casing both components.
func NewName(kind Kind, id string) Name {
	return Name{kind: Kind(strings.ToLower(string(kind))), id: strings.ToLower(id)}
}

func (n Name) Kind() Kind   { return n.kind }
func (n Name) ID() string   { return n.id }
func (n Name) String() string {
	return n.id + "." + string(n.kind)
}

// NotAUnitFileError is returned by FromPath when the extension does not map
// to a known kind. The Rescan Engine treats this as "silently ignore".
type NotAUnitFileError struct {
	Path string
}

func (e *NotAUnitFileError) Error() string {
	return "not a unit file: " + e.Path
}

// FromPath derives a Name from a path's basename and extension, e.g.
// "/units/main.jig" -> {jig, main}.
func FromPath(path string) (Name, error) {
	base := filepath.Base(path)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	id := strings.TrimSuffix(base, filepath.Ext(base))

	kind, ok := kindFromExtension(ext)
	if !ok {
		return Name{}, &NotAUnitFileError{Path: path}
	}
	if id == "" {
		return Name{}, errors.Errorf("unit file %q has no id component", path)
	}
	return NewName(kind, id), nil
}

// FromString parses either "id.kind" or a bare "id", in which case
// defaultKind applies. Used when a Description references another unit by
// name (e.g. an Interface's Jigs= directive, a Scenario's test list).
func FromString(s string, defaultKind Kind) (Name, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Name{}, errors.New("empty unit name")
	}

	if idx := strings.LastIndex(s, "."); idx >= 0 {
		id, kindStr := s[:idx], s[idx+1:]
		if kind, ok := kindFromExtension(kindStr); ok && id != "" {
			return NewName(kind, id), nil
		}
	}

	return NewName(defaultKind, s), nil
}

// FromList splits a comma/space separated directive value (e.g. a Jigs=
// entry) into a list of Names, applying defaultKind to any bare tokens.
func FromList(s string, defaultKind Kind) ([]Name, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	names := make([]Name, 0, len(fields))
	for _, f := range fields {
		n, err := FromString(f, defaultKind)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, nil
}
