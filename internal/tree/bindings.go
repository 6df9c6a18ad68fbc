package tree

// Binding records what is needed to re-run a node: the file (or directory)
// locator and the working directory of its workspace.
type Binding struct {
	Locator string
	Cwd     string
}

// Bindings is the side-table from node to Binding. Entries are only added or
// overwritten.
type Bindings struct {
	m map[Ref]Binding
}

// NewBindings returns an empty side-table.
func NewBindings() *Bindings {
	return &Bindings{m: make(map[Ref]Binding)}
}

// Set stores b for ref, replacing any previous binding.
func (b *Bindings) Set(ref Ref, binding Binding) {
	b.m[ref] = binding
}

// Get returns the binding for ref.
func (b *Bindings) Get(ref Ref) (Binding, bool) {
	binding, ok := b.m[ref]
	return binding, ok
}

// Len returns the number of bindings.
func (b *Bindings) Len() int { return len(b.m) }
