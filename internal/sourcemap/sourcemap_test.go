package sourcemap

import (
	"strings"
	"testing"
)

func TestVLQRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 15, -15, 16, -16, 1<<20 - 1, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, n := range cases {
		var b strings.Builder
		encodeVLQ(&b, n)
		got, next, err := decodeVLQ(b.String(), 0)
		if err != nil {
			t.Fatalf("decode(%d): %v", n, err)
		}
		if next != len(b.String()) {
			t.Fatalf("decode(%d) left unconsumed input", n)
		}
		if got != n {
			t.Fatalf("round trip %d -> %q -> %d", n, b.String(), got)
		}
	}
}

func TestParseEmitRoundTrip(t *testing.T) {
	m := New()
	m.File = "out.js"
	m.AddMapping(0, 0, "a.js", 0, 0, "")
	m.AddMapping(1, 0, "b.js", 0, 0, "")
	m.AddMapping(1, 4, "b.js", 0, 4, "foo")

	data, err := m.Emit()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	for _, q := range []struct {
		line, col int32
		wantSrc   string
		wantLine  int32
		wantCol   int32
	}{
		{0, 0, "a.js", 0, 0},
		{1, 0, "b.js", 0, 0},
		{1, 4, "b.js", 0, 4},
	} {
		got := parsed.GetSource(q.line, q.col)
		if !got.Found || got.Source != q.wantSrc || got.Line != q.wantLine || got.Column != q.wantCol {
			t.Errorf("GetSource(%d,%d) = %+v, want {%s %d %d}", q.line, q.col, got, q.wantSrc, q.wantLine, q.wantCol)
		}
	}
}

func TestRejectsNonV3AndSections(t *testing.T) {
	if _, err := Parse([]byte(`{"version":2,"sources":[],"names":[],"mappings":""}`)); err == nil {
		t.Error("expected error for version != 3")
	}
	if _, err := Parse([]byte(`{"version":3,"sections":[{"offset":{"line":0,"column":0}}]}`)); err == nil {
		t.Error("expected error for indexed (sections) map")
	}
}

func TestGetSourceProjectsFromPriorLine(t *testing.T) {
	m := New()
	m.AddMapping(0, 0, "a.js", 5, 2, "")
	// Line 1 has no mappings at all; querying it should project forward
	// from line 0's trailing mapping.
	m.ensureRow(1)
	got := m.GetSource(1, 9)
	if !got.Found || got.Source != "a.js" || got.Line != 6 || got.Column != 9 {
		t.Fatalf("GetSource(1,9) = %+v", got)
	}
}

func TestComposeTwoStageChain(t *testing.T) {
	// Stage 1: origin.ts -> intermediate.js at (1,1) <-> (101,99).
	stage1 := New()
	stage1.File = "intermediate.js"
	stage1.AddMapping(101, 99, "origin.ts", 1, 1, "")

	// Stage 2: intermediate.js -> out.js at (101,101) <-> (201,202) named "x".
	stage2 := New()
	stage2.File = "out.js"
	stage2.AddMapping(201, 202, "intermediate.js", 101, 101, "x")

	stage2.ApplySourceMap(stage1)

	got := stage2.GetSource(201, 203)
	if !got.Found {
		t.Fatal("expected composed mapping to resolve")
	}
	if got.Source != "origin.ts" {
		t.Errorf("source = %q, want origin.ts", got.Source)
	}
	if got.Name != "x" {
		t.Errorf("name = %q, want x", got.Name)
	}
	for _, s := range stage2.Sources {
		if s == "intermediate.js" {
			t.Errorf("expected intermediate.js to be dropped from sources, got %v", stage2.Sources)
		}
	}
}

func TestEmitSourceMapURLReplacesExisting(t *testing.T) {
	got := EmitSourceMapURL("//# sourceMappingURL=b.js", "a.js", true)
	if want := "//# sourceMappingURL=a.js"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmitSourceMapURLAppendsBlockComment(t *testing.T) {
	got := EmitSourceMapURL("body { color: red }", "a.css", false)
	if want := "body { color: red }\n/*# sourceMappingURL=a.css */"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestComputeLinesPropagatesTrailingMapping(t *testing.T) {
	m := New()
	m.AddMapping(0, 0, "a.js", 0, 0, "")
	m.ensureRow(2)
	m.ComputeLines()
	if len(m.Rows[1]) == 0 {
		t.Fatal("expected line 1 to inherit a propagated mapping")
	}
}
