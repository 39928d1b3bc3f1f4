// Package unitfile turns a directive-format unit file on disk into the
// section/key/value tree every Description parser consumes. The parser
// itself is an external collaborator (spec.md §6): we lean on
// coreos/go-systemd's unit deserializer, the same role the original
// implementation's systemd_parser crate played, since unit files use the
// identical bracketed-section / Key=Value / '#'-comment grammar systemd unit
// files use.
package unitfile

import (
	"io"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/spkg/bom"
)

// File is the parsed section/key/value tree for one unit file.
type File struct {
	options []*unit.UnitOption
}

// Parse reads and parses the unit file at path.
func Parse(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseReader(f)
}

// ParseReader parses a unit file from an arbitrary reader, stripping any
// leading UTF-8 BOM first so files saved by Windows-side editors still
// parse cleanly.
func ParseReader(r io.Reader) (*File, error) {
	opts, err := unit.Deserialize(bom.NewReader(r))
	if err != nil {
		return nil, err
	}
	return &File{options: opts}, nil
}

// HasSection reports whether the file contains at least one directive under
// the named section.
func (f *File) HasSection(section string) bool {
	for _, o := range f.options {
		if strings.EqualFold(o.Section, section) {
			return true
		}
	}
	return false
}

// Lookup returns every directive under the named section, in file order.
// Repeated keys (e.g. multiple "Jigs=" lines) each appear as a separate
// entry, matching systemd unit-file semantics.
func (f *File) Lookup(section string) []Directive {
	var out []Directive
	for _, o := range f.options {
		if strings.EqualFold(o.Section, section) {
			out = append(out, Directive{Key: o.Name, Value: o.Value})
		}
	}
	return out
}

// Value returns the value of the first occurrence of key under section, and
// whether it was present at all.
func (f *File) Value(section, key string) (string, bool) {
	for _, d := range f.Lookup(section) {
		if strings.EqualFold(d.Key, key) {
			return d.Value, true
		}
	}
	return "", false
}

// Directive is a single Key=Value entry under a section.
type Directive struct {
	Key   string
	Value string
}
