package subtree

import (
	"fmt"
	"strconv"

	"github.com/bgricker/taptree/internal/tap"
)

// Collector buffers one nesting level. Assertions and completed child groups
// are kept in arrival order until the level itself completes.
type Collector struct {
	nodes []Node

	// closing is the id of the group completed last; the test point that
	// immediately follows with the same id is its closing point.
	closing string
}

// OnAssertion records a test point. Timing-only points are dropped. The
// closing point of the previous child group becomes that group's outcome.
func (c *Collector) OnAssertion(a tap.Assert) {
	id := strconv.Itoa(a.ID)
	closing := c.closing
	c.closing = ""
	if a.TimeOnly() {
		return
	}
	if closing != "" && closing == id {
		if g, ok := c.nodes[len(c.nodes)-1].(*Group); ok {
			o := outcome(a)
			g.Outcome = &o
			return
		}
	}
	c.nodes = append(c.nodes, &Leaf{ID: id, Name: a.Name, Outcome: outcome(a)})
}

// OnChildComplete appends a finished child group.
func (c *Collector) OnChildComplete(g *Group) {
	c.nodes = append(c.nodes, g)
	c.closing = g.ID
}

// Nodes returns the buffered nodes in arrival order.
func (c *Collector) Nodes() []Node {
	return c.nodes
}

func outcome(a tap.Assert) Outcome {
	if !a.Failed() {
		return Pass
	}
	var f Failure
	if d := a.Diag; d != nil {
		f = Failure{Stack: d.Stack, Source: d.Source, Compare: d.Compare, Found: d.Found, Wanted: d.Wanted}
	}
	return Fail(f)
}

type frame struct {
	name      string
	collector *Collector
}

// Builder drives one Collector per nesting depth from a TAP event stream and
// yields the top-level nodes once the stream completes. It is meant to be used
// as a tap.Handler.
type Builder struct {
	stack  []frame
	done   bool
	result tap.Result
}

// NewBuilder returns a Builder with the top-level collector in place.
func NewBuilder() *Builder {
	return &Builder{stack: []frame{{collector: &Collector{}}}}
}

// Handle consumes one event.
func (b *Builder) Handle(ev tap.Event) error {
	if b.done {
		return nil
	}
	switch e := ev.(type) {
	case tap.Assert:
		top, err := b.at(e.Depth)
		if err != nil {
			return err
		}
		top.OnAssertion(e)
	case tap.SubtestStart:
		if e.Depth != len(b.stack) {
			return fmt.Errorf("subtest %q starts at depth %d, expected %d", e.Name, e.Depth, len(b.stack))
		}
		b.stack = append(b.stack, frame{name: e.Name, collector: &Collector{}})
	case tap.SubtestComplete:
		if e.Depth != len(b.stack)-1 || e.Depth == 0 {
			return fmt.Errorf("subtest %q completes at depth %d, open depth is %d", e.Name, e.Depth, len(b.stack)-1)
		}
		child := b.stack[len(b.stack)-1]
		b.stack = b.stack[:len(b.stack)-1]
		name := e.Name
		if name == "" {
			name = child.name
		}
		b.stack[len(b.stack)-1].collector.OnChildComplete(&Group{
			ID:       e.ID,
			Name:     name,
			Children: child.collector.Nodes(),
		})
	case tap.Complete:
		b.done = true
		b.result = e.Result
	}
	return nil
}

func (b *Builder) at(depth int) (*Collector, error) {
	if depth != len(b.stack)-1 {
		return nil, fmt.Errorf("event at depth %d, open depth is %d", depth, len(b.stack)-1)
	}
	return b.stack[depth].collector, nil
}

// Done reports whether the stream has completed.
func (b *Builder) Done() bool { return b.done }

// Result is the top-level stream summary, valid once Done.
func (b *Builder) Result() tap.Result { return b.result }

// Nodes returns the top-level nodes collected so far.
func (b *Builder) Nodes() []Node {
	return b.stack[0].collector.Nodes()
}
