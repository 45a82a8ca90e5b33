package importmodel

import "sort"

// ExportKind is the declared kind of an export slot.
type ExportKind int

const (
	ExportClass ExportKind = iota
	ExportFunction
	ExportValue
	ExportReExportAll
	ExportReExport
)

func (k ExportKind) String() string {
	switch k {
	case ExportClass:
		return "class"
	case ExportFunction:
		return "function"
	case ExportValue:
		return "value"
	case ExportReExportAll:
		return "reExportAll"
	case ExportReExport:
		return "reExport"
	default:
		return "unknown"
	}
}

// ExportDecl is a raw export declaration as written in the source.
//
// For re-exports ImportIndex points into the unit's Imports; it is -1 for
// local declarations. "export * from" carries no Name.
type ExportDecl struct {
	Name        string
	Local       string
	Kind        ExportKind
	ImportIndex int
	Line        int
}

// ExportDescriptor describes one normalized export slot.
type ExportDescriptor struct {
	DeclaredName string
	Kind         ExportKind
	// From is the target id for re-exported slots.
	From string
	// Origin identifies the binding behind the slot; two slots with the same
	// Origin read the same value. See OriginOf.
	Origin string
}

// OriginOf returns the Origin of the binding local declared by module id.
// A whole module or package namespace has the bare id as its origin.
func OriginOf(id, local string) string {
	if local == "" || local == "*" {
		return id
	}

	return id + "#" + local
}

// IsReExport reports whether the slot is served by another module.
func (d ExportDescriptor) IsReExport() bool {
	return d.Kind == ExportReExport || d.Kind == ExportReExportAll
}

// ExportRecord is the canonical export surface of a module.
type ExportRecord struct {
	slots map[string]ExportDescriptor
	order []string
}

// NewExportRecord returns an empty record.
func NewExportRecord() *ExportRecord {
	return &ExportRecord{slots: make(map[string]ExportDescriptor)}
}

// Set stores d under name, keeping the first insertion position.
func (r *ExportRecord) Set(name string, d ExportDescriptor) {
	if _, ok := r.slots[name]; !ok {
		r.order = append(r.order, name)
	}

	r.slots[name] = d
}

// Get returns the descriptor for name.
func (r *ExportRecord) Get(name string) (ExportDescriptor, bool) {
	d, ok := r.slots[name]

	return d, ok
}

// Has reports whether name is a slot.
func (r *ExportRecord) Has(name string) bool {
	_, ok := r.slots[name]

	return ok
}

// HasDefault reports whether the record has a default slot.
func (r *ExportRecord) HasDefault() bool {
	return r.Has(DefaultSlot)
}

// Len returns the number of slots.
func (r *ExportRecord) Len() int {
	return len(r.order)
}

// Names returns slot names in declaration order.
func (r *ExportRecord) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// SortedNames returns slot names in lexical order.
func (r *ExportRecord) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)

	return out
}
