package unit

// JigList is the parsed form of a "Jigs=" directive: the set of jig names a
// unit is compatible with. An empty list means universal compatibility
// (§4.8's "empty (= universally compatible)"), which every non-Jig kind
// shares the same rule for.
type JigList []Name

// Supports reports whether jigName is in the list, or the list is empty.
func (l JigList) Supports(jigName Name) bool {
	if len(l) == 0 {
		return true
	}
	for _, n := range l {
		if n == jigName {
			return true
		}
	}
	return false
}

// ParseJigList parses a directive value into a JigList, defaulting bare
// tokens to KindJig.
func ParseJigList(value string) (JigList, error) {
	if value == "" {
		return nil, nil
	}
	names, err := FromList(value, KindJig)
	if err != nil {
		return nil, err
	}
	return JigList(names), nil
}
