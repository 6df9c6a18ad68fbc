package tap

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/acarl005/stripansi"
)

// ErrBailOut is returned by Parse when the stream bailed out.
var ErrBailOut = errors.New("tap stream bailed out")

// Handler receives events in arrival order. Returning an error stops the
// parser; the error is returned from the next Write or Close.
type Handler func(Event) error

var (
	versionRe = regexp.MustCompile(`^TAP version (\d+)$`)
	planRe    = regexp.MustCompile(`^(\d+)\.\.(\d+)\s*(?:#\s*(.*))?$`)
	assertRe  = regexp.MustCompile(`^(not )?ok(?:\s+(\d+))?(?:\s+(.*))?$`)
	subtestRe = regexp.MustCompile(`^#\s*Subtest(?::\s*(.*))?$`)
	bailRe    = regexp.MustCompile(`^Bail out!\s*(.*)$`)

	nameUnescaper = strings.NewReplacer(`\#`, `#`, `\\`, `\`)
)

// level is one nesting depth of the stream.
type level struct {
	depth  int
	indent int // -1 until the first line of a buffered body arrives
	name   string
	lastID int
	result Result

	// nextName is the name announced by `# Subtest:` for the next child.
	nextName string
	seen     bool
	// waiting is a child whose body ended; the next test point at this
	// level closes it.
	waiting *level

	buffered bool
	opener   *Assert
}

type pendingAssert struct {
	assert Assert
	level  *level
}

type yamlBlock struct {
	indent int
	lines  []string
}

// Parser is a streaming parser for nested TAP. It implements io.Writer so a
// process's stdout can be piped straight into it; Close ends the stream.
type Parser struct {
	emit    Handler
	partial []byte
	levels  []*level
	pending *pendingAssert
	yaml    *yamlBlock
	result  Result
	done    bool
	err     error
}

// NewParser creates a parser that reports events to h.
func NewParser(h Handler) *Parser {
	return &Parser{
		emit:   h,
		levels: []*level{{depth: 0, indent: 0}},
	}
}

// Parse reads the whole stream from r and returns the top-level result.
func Parse(r io.Reader, h Handler) (Result, error) {
	p := NewParser(h)
	if _, err := io.Copy(p, r); err != nil {
		return Result{}, err
	}
	if err := p.Close(); err != nil {
		return p.result, err
	}
	if p.result.BailOut {
		return p.result, ErrBailOut
	}
	return p.result, nil
}

// Write consumes raw stream bytes. Incomplete trailing lines are buffered
// until the rest arrives.
func (p *Parser) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.done {
		return len(b), nil
	}
	p.partial = append(p.partial, b...)
	for {
		idx := bytes.IndexByte(p.partial, '\n')
		if idx < 0 {
			break
		}
		line := string(p.partial[:idx])
		p.partial = p.partial[idx+1:]
		p.line(line)
		if p.err != nil || p.done {
			break
		}
	}
	return len(b), p.err
}

// Close flushes buffered input, closes any open subtests and emits Complete.
// It is safe to call more than once.
func (p *Parser) Close() error {
	if p.err != nil || p.done {
		return p.err
	}
	if len(p.partial) > 0 {
		line := string(p.partial)
		p.partial = nil
		p.line(line)
	}
	if !p.done {
		p.finish()
	}
	return p.err
}

// Result returns the top-level result. It is final once Close returns.
func (p *Parser) Result() Result {
	return p.result
}

func (p *Parser) send(ev Event) {
	if p.err != nil || p.emit == nil {
		return
	}
	p.err = p.emit(ev)
}

func (p *Parser) top() *level {
	return p.levels[len(p.levels)-1]
}

func (p *Parser) line(raw string) {
	raw = strings.TrimRight(stripansi.Strip(raw), "\r")
	indent := leadingSpaces(raw)

	if p.yaml != nil {
		if strings.TrimSpace(raw) == "..." && indent <= p.yaml.indent {
			p.endYAML()
			return
		}
		p.yaml.lines = append(p.yaml.lines, trimIndent(raw, p.yaml.indent))
		return
	}

	content := strings.TrimSpace(raw)
	if content == "" {
		return
	}

	if p.pending != nil && content == "---" && indent > p.pending.level.indent {
		p.yaml = &yamlBlock{indent: indent}
		return
	}
	p.flushPending()

	cur := p.top()
	if cur.buffered && cur.indent < 0 && content != "}" {
		cur.indent = indent
	}
	if indent < cur.indent {
		cur = p.dedent(indent)
	}
	if cur.buffered && content == "}" {
		p.closeBuffered()
		return
	}
	if indent > cur.indent {
		cur = p.openChild(indent)
	}
	p.content(cur, content)
	cur.seen = true
}

func (p *Parser) openChild(indent int) *level {
	parent := p.top()
	if parent.waiting != nil {
		p.completeChild(parent, parent.waiting, strconv.Itoa(parent.lastID+1), "")
	}
	child := &level{depth: parent.depth + 1, indent: indent, name: parent.nextName}
	parent.nextName = ""
	p.levels = append(p.levels, child)
	p.send(SubtestStart{Depth: child.depth, Name: child.name})
	return child
}

func (p *Parser) dedent(indent int) *level {
	for len(p.levels) > 1 && p.top().indent > indent && !p.top().buffered {
		child := p.top()
		p.levels = p.levels[:len(p.levels)-1]
		if child.waiting != nil {
			p.completeChild(child, child.waiting, strconv.Itoa(child.lastID+1), "")
		}
		parent := p.top()
		if parent.waiting != nil {
			p.completeChild(parent, parent.waiting, strconv.Itoa(parent.lastID+1), "")
		}
		parent.waiting = child
	}
	return p.top()
}

func (p *Parser) content(cur *level, content string) {
	if cur.waiting != nil && !strings.HasPrefix(content, "#") && !assertRe.MatchString(content) {
		p.completeChild(cur, cur.waiting, strconv.Itoa(cur.lastID+1), "")
	}

	if m := versionRe.FindStringSubmatch(content); m != nil {
		v, _ := strconv.Atoi(m[1])
		p.send(Version{Depth: cur.depth, Version: v})
		return
	}
	if strings.HasPrefix(content, "pragma ") {
		return
	}
	if m := bailRe.FindStringSubmatch(content); m != nil {
		p.bailOut(cur, m[1])
		return
	}
	if m := planRe.FindStringSubmatch(content); m != nil {
		p.plan(cur, m)
		return
	}
	if m := assertRe.FindStringSubmatch(content); m != nil {
		p.assert(cur, m)
		return
	}
	if m := subtestRe.FindStringSubmatch(content); m != nil {
		name := strings.TrimSpace(m[1])
		// TAP 14 places the marker inside the subtest body.
		if cur.depth > 0 && !cur.seen && cur.name == "" {
			cur.name = name
			return
		}
		cur.nextName = name
		return
	}
	if strings.HasPrefix(content, "#") {
		p.send(Comment{Depth: cur.depth, Text: strings.TrimSpace(strings.TrimPrefix(content, "#"))})
	}
}

func (p *Parser) plan(cur *level, m []string) {
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	plan := Plan{Depth: cur.depth, Start: start, End: end, Comment: strings.TrimSpace(m[3])}
	if end < start || strings.HasPrefix(strings.ToLower(plan.Comment), "skip") {
		plan.Skip = true
	}
	cur.result.Plan = &plan
	p.send(plan)
}

func (p *Parser) assert(cur *level, m []string) {
	a := Assert{Depth: cur.depth, OK: m[1] == ""}
	if m[2] != "" {
		a.ID, _ = strconv.Atoi(m[2])
	} else {
		a.ID = cur.lastID + 1
	}
	cur.lastID = a.ID

	rest := strings.TrimSpace(m[3])
	buffered := false
	if strings.HasSuffix(rest, "{") {
		buffered = true
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "{"))
	}
	rest = strings.TrimPrefix(rest, "-")
	desc, directive := splitDirective(rest)
	a.Name = nameUnescaper.Replace(strings.TrimSpace(desc))
	applyDirective(&a, directive)

	if buffered {
		if cur.waiting != nil {
			p.completeChild(cur, cur.waiting, strconv.Itoa(a.ID), "")
		}
		child := &level{depth: cur.depth + 1, indent: -1, name: a.Name, buffered: true, opener: &a}
		p.levels = append(p.levels, child)
		p.send(SubtestStart{Depth: child.depth, Name: child.name})
		return
	}

	if cur.waiting != nil {
		p.completeChild(cur, cur.waiting, strconv.Itoa(a.ID), a.Name)
	}
	p.pending = &pendingAssert{assert: a, level: cur}
}

func (p *Parser) closeBuffered() {
	child := p.top()
	p.levels = p.levels[:len(p.levels)-1]
	if child.waiting != nil {
		p.completeChild(child, child.waiting, strconv.Itoa(child.lastID+1), "")
	}
	parent := p.top()
	opener := *child.opener
	p.completeChild(parent, child, strconv.Itoa(opener.ID), opener.Name)
	p.pending = &pendingAssert{assert: opener, level: parent}
}

func (p *Parser) completeChild(parent, child *level, id, name string) {
	if parent.waiting == child {
		parent.waiting = nil
	}
	if child.name == "" {
		child.name = name
	}
	child.result.finish()
	p.send(SubtestComplete{Depth: child.depth, ID: id, Name: child.name, Result: child.result})
}

func (p *Parser) flushPending() {
	if p.pending == nil {
		return
	}
	pa := p.pending
	p.pending = nil
	pa.level.result.record(pa.assert)
	p.send(pa.assert)
}

func (p *Parser) endYAML() {
	block := p.yaml
	p.yaml = nil
	if p.pending == nil {
		return
	}
	diag, _ := ParseDiagnostics(strings.Join(block.lines, "\n"))
	p.pending.assert.Diag = diag
	p.flushPending()
}

func (p *Parser) bailOut(cur *level, reason string) {
	p.send(BailOut{Depth: cur.depth, Reason: reason})
	root := p.levels[0]
	root.result.BailOut = true
	root.result.Reason = reason
	p.finish()
}

// finish unwinds every open level and emits Complete.
func (p *Parser) finish() {
	if p.yaml != nil {
		p.endYAML()
	}
	p.flushPending()
	for len(p.levels) > 1 {
		child := p.top()
		p.levels = p.levels[:len(p.levels)-1]
		if child.waiting != nil {
			p.completeChild(child, child.waiting, strconv.Itoa(child.lastID+1), "")
		}
		parent := p.top()
		if parent.waiting != nil {
			p.completeChild(parent, parent.waiting, strconv.Itoa(parent.lastID+1), "")
		}
		if child.opener == nil {
			p.completeChild(parent, child, strconv.Itoa(parent.lastID+1), "")
			continue
		}
		opener := *child.opener
		p.completeChild(parent, child, strconv.Itoa(opener.ID), opener.Name)
		p.pending = &pendingAssert{assert: opener, level: parent}
		p.flushPending()
	}
	root := p.levels[0]
	if root.waiting != nil {
		p.completeChild(root, root.waiting, strconv.Itoa(root.lastID+1), "")
	}
	root.result.finish()
	p.result = root.result
	p.done = true
	p.send(Complete{Result: p.result})
}

func splitDirective(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '#':
			return s[:i], strings.TrimSpace(s[i+1:])
		}
	}
	return s, ""
}

func applyDirective(a *Assert, directive string) {
	if directive == "" {
		return
	}
	word, reason, _ := strings.Cut(directive, " ")
	lower := strings.ToLower(word)
	switch {
	case strings.HasPrefix(lower, "skip"):
		a.Skip = true
		a.Reason = strings.TrimSpace(reason)
	case strings.HasPrefix(lower, "todo"):
		a.Todo = true
		a.Reason = strings.TrimSpace(reason)
	case strings.HasPrefix(lower, "time="):
		a.Time = word[len("time="):]
	}
}

func leadingSpaces(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}

func trimIndent(s string, indent int) string {
	n := leadingSpaces(s)
	if n > indent {
		n = indent
	}
	return s[n:]
}
