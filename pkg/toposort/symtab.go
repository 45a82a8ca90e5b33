package toposort

// symbolTable maps node names to dense integer ids and back.
type symbolTable struct {
	ids   map[string]int
	names []string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{ids: make(map[string]int)}
}

// intern returns the id of name, assigning the next free id on first use.
func (table *symbolTable) intern(name string) int {
	if id, ok := table.ids[name]; ok {
		return id
	}

	id := len(table.names)
	table.names = append(table.names, name)
	table.ids[name] = id

	return id
}

func (table *symbolTable) lookup(name string) (int, bool) {
	id, ok := table.ids[name]

	return id, ok
}

// resolve returns the name of id, or "" for an unknown id.
func (table *symbolTable) resolve(id int) string {
	if id < 0 || id >= len(table.names) {
		return ""
	}

	return table.names[id]
}

func (table *symbolTable) resolveAll(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = table.resolve(id)
	}

	return out
}
