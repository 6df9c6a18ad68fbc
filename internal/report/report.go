package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bgricker/taptree/internal/metrics"
	"github.com/bgricker/taptree/internal/tree"
)

// Status is the reported state of a node.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// NodeResult captures the outcome reported for one node.
type NodeResult struct {
	Ref     tree.Ref `json:"-"`
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
}

// TargetResult captures how one run target finished.
type TargetResult struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Total         int           `json:"total"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Targets       int           `json:"targets"`
	FailedTargets int           `json:"failed_targets"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
	ExitCode      int           `json:"exit_code"`
}

// Run records outcomes for one test run. Reporting a node again replaces its
// earlier outcome.
type Run struct {
	ID string

	now     func() time.Time
	started time.Time

	mu      sync.Mutex
	results []NodeResult
	index   map[tree.Ref]int
	targets []TargetResult
	output  []byte
}

// NewRun starts a run. A nil now uses time.Now.
func NewRun(now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{
		ID:      uuid.NewString(),
		now:     now,
		started: now(),
		index:   make(map[tree.Ref]int),
	}
}

// Passed marks n as passed.
func (r *Run) Passed(n tree.Node) {
	r.record(n, StatusPassed, "")
}

// Failed marks n as failed with message.
func (r *Run) Failed(n tree.Node, message string) {
	r.record(n, StatusFailed, message)
}

func (r *Run) record(n tree.Node, status Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := NodeResult{
		Ref:     n.Ref,
		ID:      n.ID,
		Name:    n.Name,
		Kind:    n.Kind.String(),
		Status:  status,
		Message: message,
	}
	if n.Kind == tree.Assertion {
		metrics.RecordAssertion(status == StatusPassed)
	}
	if i, ok := r.index[n.Ref]; ok {
		r.results[i] = res
		return
	}
	r.index[n.Ref] = len(r.results)
	r.results = append(r.results, res)
}

// AppendOutput adds text to the run output.
func (r *Run) AppendOutput(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = append(r.output, text...)
}

// TargetPassed records a target that ran to completion.
func (r *Run) TargetPassed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, TargetResult{Name: name})
}

// TargetFailed records a target that could not run.
func (r *Run) TargetFailed(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := "failed"
	if err != nil {
		msg = err.Error()
	}
	r.targets = append(r.targets, TargetResult{Name: name, Error: msg})
}

// Results returns node outcomes in first-reported order.
func (r *Run) Results() []NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NodeResult(nil), r.results...)
}

// Result returns the outcome reported for ref.
func (r *Run) Result(ref tree.Ref) (NodeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[ref]
	if !ok {
		return NodeResult{}, false
	}
	return r.results[i], true
}

// Targets returns target outcomes in order.
func (r *Run) Targets() []TargetResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TargetResult(nil), r.targets...)
}

// Output returns the accumulated run output.
func (r *Run) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.output)
}

// End summarises the run.
func (r *Run) End() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := Summary{RunID: r.ID, Total: len(r.results), Targets: len(r.targets)}
	for _, res := range r.results {
		if res.Status == StatusPassed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	for _, target := range r.targets {
		if target.Error != "" {
			summary.FailedTargets++
		}
	}
	summary.Duration = r.now().Sub(r.started)
	summary.DurationMS = summary.Duration.Milliseconds()
	if summary.Failed > 0 || summary.FailedTargets > 0 {
		summary.ExitCode = 1
	}
	return summary
}
