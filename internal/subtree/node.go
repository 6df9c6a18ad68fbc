package subtree

// Node is one element of an ephemeral result subtree: a *Leaf or a *Group.
// Nodes live only until the subtree has been merged into the persistent tree.
type Node interface {
	NodeID() string
	NodeName() string
}

// Leaf is a single assertion result.
type Leaf struct {
	ID      string
	Name    string
	Outcome Outcome
}

// Group is a completed subtest. Its ID comes from the closing test point, so a
// Group only exists once every child has been collected. Outcome is set when
// the closing point reports a result rather than only timing.
type Group struct {
	ID       string
	Name     string
	Children []Node
	Outcome  *Outcome
}

func (l *Leaf) NodeID() string    { return l.ID }
func (l *Leaf) NodeName() string  { return l.Name }
func (g *Group) NodeID() string   { return g.ID }
func (g *Group) NodeName() string { return g.Name }

// Outcome is the result of an assertion. A nil Failure means it passed.
type Outcome struct {
	Failure *Failure
}

// Passed reports whether the assertion passed.
func (o Outcome) Passed() bool { return o.Failure == nil }

// Failure carries the diagnostic fields of a failed assertion. Fields missing
// from the stream are empty strings.
type Failure struct {
	Stack   string
	Source  string
	Compare string
	Found   string
	Wanted  string
}

// Pass is the outcome of a passing assertion.
var Pass = Outcome{}

// Fail builds a failing outcome.
func Fail(f Failure) Outcome { return Outcome{Failure: &f} }
