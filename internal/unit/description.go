package unit

// Description is the common surface every parsed unit-file representation
// exposes (§3: "all expose at least id() and supports_jig(jig_name) → bool").
type Description interface {
	ID() Name
	SupportsJig(jig Name) bool
}
