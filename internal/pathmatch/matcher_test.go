package pathmatch

import "testing"

func TestGlobStarMatchesWithinSegment(t *testing.T) {
	m := New("/proj", Glob("*.txt"))
	cases := map[string]bool{
		"/proj/f1.txt":     true,
		"/proj/f2.txt":     true,
		"/proj/sub/f3.txt": true, // basename-anywhere, no "/" in pattern
		"/proj/f1.json":    false,
	}
	for p, want := range cases {
		if got := m.Test(p); got != want {
			t.Errorf("Test(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestGlobDoubleStarSpansSlashes(t *testing.T) {
	m := New("/proj", Glob("src/**/*.go"))
	if !m.Test("/proj/src/a.go") {
		t.Error("expected src/a.go to match via **/")
	}
	if !m.Test("/proj/src/pkg/sub/a.go") {
		t.Error("expected deeply nested file to match")
	}
	if m.Test("/proj/other/a.go") {
		t.Error("did not expect unrelated dir to match")
	}
}

func TestExcludePrefixBang(t *testing.T) {
	m := New("/proj", Glob("*.txt"), Glob("!ignored.txt"))
	if m.Test("/proj/ignored.txt") {
		t.Error("expected ignored.txt to be excluded")
	}
	if !m.Test("/proj/kept.txt") {
		t.Error("expected kept.txt to match")
	}
}

func TestCharacterClass(t *testing.T) {
	m := New("/proj", Glob("file[0-2].txt"))
	if !m.Test("/proj/file0.txt") || !m.Test("/proj/file2.txt") {
		t.Error("expected file0/file2.txt to match class")
	}
	if m.Test("/proj/file9.txt") {
		t.Error("did not expect file9.txt to match class")
	}
}

func TestEmptyIncludeMatchesAllSubjectToExclude(t *testing.T) {
	m := New("/proj", Glob("!*.log"))
	if !m.Test("/proj/a.txt") {
		t.Error("expected a.txt to match: empty include set means all included")
	}
	if m.Test("/proj/a.log") {
		t.Error("expected a.log to be excluded")
	}
}

func TestMatcherBaseIsCommonDirOfIncludes(t *testing.T) {
	m := New("/proj", Glob("src/a/*.go"), Glob("src/b/*.go"))
	if got, want := m.Base(), "/proj/src"; got != want {
		t.Errorf("Base() = %q, want %q", got, want)
	}
}

func TestCompilationIsTotal(t *testing.T) {
	// An unterminated class must not panic and must compile to something.
	m := New("/proj", Glob("weird[abc"))
	_ = m.Test("/proj/weird[abc")
}

func TestJoinRelCannotEscapeBase(t *testing.T) {
	if got, want := JoinRel("a/b", "../../../etc/passwd"), "a/b/etc/passwd"; got != want {
		t.Errorf("JoinRel = %q, want %q", got, want)
	}
}

func TestInDir(t *testing.T) {
	if !InDir("/a/b", "/a/b/c") {
		t.Error("expected /a/b/c to be in /a/b")
	}
	if InDir("/a/b", "/a/bc") {
		t.Error("did not expect /a/bc to be in /a/b")
	}
}
