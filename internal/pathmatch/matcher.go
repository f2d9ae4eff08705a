package pathmatch

import (
	"regexp"
	"sort"
)

// PatternKind discriminates the four supported pattern flavors described
// in spec.md 4.1 ("a pattern is one of: a glob string, a regular
// expression, a predicate function, another matcher").
type PatternKind int

const (
	// KindGlob is a glob string, optionally prefixed with "!" to exclude.
	KindGlob PatternKind = iota
	// KindRegexp is a compiled *regexp.Regexp.
	KindRegexp
	// KindFunc is an arbitrary predicate over an absolute path.
	KindFunc
	// KindMatcher nests another *Matcher.
	KindMatcher
)

// Pattern is one entry of the union type Matcher patterns are built from.
type Pattern struct {
	Kind    PatternKind
	Glob    string
	Regexp  *regexp.Regexp
	Func    func(absPath string) bool
	Matcher *Matcher
}

// Glob builds a glob Pattern. A leading "!" marks it as an exclude when
// used inside New's include list.
func Glob(p string) Pattern { return Pattern{Kind: KindGlob, Glob: p} }

// Regexp builds a Pattern from a compiled regular expression.
func Regexp(re *regexp.Regexp) Pattern { return Pattern{Kind: KindRegexp, Regexp: re} }

// Func builds a Pattern from a predicate over an absolute path.
func Func(f func(absPath string) bool) Pattern { return Pattern{Kind: KindFunc, Func: f} }

// Nested builds a Pattern from another Matcher.
func Nested(m *Matcher) Pattern { return Pattern{Kind: KindMatcher, Matcher: m} }

// compiledPattern is one include or exclude entry with its own base and
// test function, per spec.md 4.1 ("Each compiled pattern carries a base
// ... and a test(absPath) function").
type compiledPattern struct {
	base string // "" means "no fixed base" (regexp/func/nested patterns)
	test func(absPath string) bool
}

// Matcher is a compiled disjunction of include patterns plus a list of
// exclude patterns (spec.md 3, "Matcher").
type Matcher struct {
	cwd      string
	includes []compiledPattern
	excludes []compiledPattern
	base     string
}

// New compiles cwd-relative patterns into a Matcher. Patterns beginning
// with "!" (glob only) are routed to the exclude set.
func New(cwd string, patterns ...Pattern) *Matcher {
	m := &Matcher{cwd: Normalize(cwd)}
	for _, p := range patterns {
		m.add(p)
	}
	m.computeBase()
	return m
}

func (m *Matcher) add(p Pattern) {
	if p.Kind == KindGlob && len(p.Glob) > 0 && p.Glob[0] == '!' {
		m.excludes = append(m.excludes, m.compile(Glob(p.Glob[1:])))
		return
	}
	m.includes = append(m.includes, m.compile(p))
}

// AddExclude appends an additional exclude pattern (used to merge in an
// `ignore`/`ignoreFile` configuration surface independent of the glob's
// own "!" syntax).
func (m *Matcher) AddExclude(p Pattern) {
	m.excludes = append(m.excludes, m.compile(p))
}

func (m *Matcher) compile(p Pattern) compiledPattern {
	switch p.Kind {
	case KindGlob:
		g := compileGlob(m.cwd, p.Glob)
		return compiledPattern{base: g.base, test: g.test}
	case KindRegexp:
		re := p.Regexp
		return compiledPattern{test: func(s string) bool { return re.MatchString(s) }}
	case KindFunc:
		f := p.Func
		return compiledPattern{test: f}
	case KindMatcher:
		nested := p.Matcher
		return compiledPattern{base: nested.base, test: nested.Test}
	}
	return compiledPattern{test: func(string) bool { return false }}
}

func (m *Matcher) computeBase() {
	if len(m.includes) == 0 {
		m.base = m.cwd
		return
	}
	base := ""
	first := true
	for _, inc := range m.includes {
		b := inc.base
		if b == "" {
			b = m.cwd
		}
		if first {
			base = b
			first = false
			continue
		}
		base = CommonDir(base, b)
	}
	m.base = base
}

// Base returns the matcher's common base directory, the common-directory
// of its include patterns' bases.
func (m *Matcher) Base() string { return m.base }

// Test reports whether path matches the matcher: true iff any include
// pattern matches and no exclude pattern matches. A matcher with zero
// include patterns defaults to "all included".
func (m *Matcher) Test(absPath string) bool {
	p := Normalize(absPath)
	included := len(m.includes) == 0
	for _, inc := range m.includes {
		if inc.test(p) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, exc := range m.excludes {
		if exc.test(p) {
			return false
		}
	}
	return true
}

// Bases returns the sorted, deduplicated set of base directories the
// matcher's include patterns are rooted under — the set a glob driver
// should walk from.
func (m *Matcher) Bases() []string {
	if len(m.includes) == 0 {
		return []string{m.base}
	}
	seen := make(map[string]bool)
	var out []string
	for _, inc := range m.includes {
		b := inc.base
		if b == "" {
			b = m.cwd
		}
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	sort.Strings(out)
	return out
}
