package tap

// Event is a single element parsed from a TAP stream. Depth is the nesting
// level the event belongs to; 0 is the top-level stream.
type Event interface {
	EventDepth() int
}

// Version is the `TAP version N` header.
type Version struct {
	Depth   int
	Version int
}

// Plan is a `1..N` line with an optional skip comment.
type Plan struct {
	Depth   int
	Start   int
	End     int
	Skip    bool
	Comment string
}

// Assert is a single `ok` / `not ok` test point.
type Assert struct {
	Depth int
	ID    int
	OK    bool
	Name  string

	Skip   bool
	Todo   bool
	Reason string

	// Time holds the value of a `# time=...` directive. Test points carrying
	// it are timing metadata emitted for completed subtests.
	Time string

	Diag *Diagnostics
}

// Comment is any `#` line that is not a subtest marker.
type Comment struct {
	Depth int
	Text  string
}

// SubtestStart opens a nested stream at Depth.
type SubtestStart struct {
	Depth int
	Name  string
}

// SubtestComplete closes the nested stream at Depth. ID is taken from the
// parent's closing test point and is not known before this event.
type SubtestComplete struct {
	Depth  int
	ID     string
	Name   string
	Result Result
}

// BailOut reports a `Bail out!` line. The stream completes right after it.
type BailOut struct {
	Depth  int
	Reason string
}

// Complete is emitted exactly once when the top-level stream ends.
type Complete struct {
	Result Result
}

// Result summarises one stream level.
type Result struct {
	OK      bool
	Count   int
	Pass    int
	Fail    int
	Skip    int
	Todo    int
	Plan    *Plan
	BailOut bool
	Reason  string
}

func (e Version) EventDepth() int         { return e.Depth }
func (e Plan) EventDepth() int            { return e.Depth }
func (e Assert) EventDepth() int          { return e.Depth }
func (e Comment) EventDepth() int         { return e.Depth }
func (e SubtestStart) EventDepth() int    { return e.Depth }
func (e SubtestComplete) EventDepth() int { return e.Depth }
func (e BailOut) EventDepth() int         { return e.Depth }
func (e Complete) EventDepth() int        { return 0 }

// Failed reports whether the test point counts as a failure. TODO and SKIP
// directives excuse a `not ok`.
func (a Assert) Failed() bool {
	return !a.OK && !a.Todo && !a.Skip
}

// TimeOnly reports whether the test point only carries timing metadata.
func (a Assert) TimeOnly() bool {
	return a.Time != ""
}

func (r *Result) record(a Assert) {
	r.Count++
	switch {
	case a.Skip:
		r.Skip++
		r.Pass++
	case a.Todo:
		r.Todo++
		r.Pass++
	case a.OK:
		r.Pass++
	default:
		r.Fail++
	}
}

func (r *Result) finish() {
	r.OK = r.Fail == 0 && !r.BailOut
	if r.OK && r.Plan != nil && !r.Plan.Skip {
		r.OK = r.Plan.End-r.Plan.Start+1 == r.Count
	}
}
