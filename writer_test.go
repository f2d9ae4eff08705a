package digo

import (
	"strings"
	"testing"
)

func TestWriterTracksLineAndColumn(t *testing.T) {
	w := NewWriter("")
	w.Write(Fragment{Content: "ab\ncd"})
	if w.Line() != 1 || w.Col() != 2 {
		t.Fatalf("line=%d col=%d, want 1,2", w.Line(), w.Col())
	}
	if w.String() != "ab\ncd" {
		t.Fatalf("got %q", w.String())
	}
}

func TestWriterInsertsIndentAfterNewline(t *testing.T) {
	w := NewWriter("  ")
	w.Write(Fragment{Content: "a\nb\nc"})
	if got, want := w.String(), "a\n  b\n  c"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSourceMapWriterConcatenationResolvesEachFragment(t *testing.T) {
	w := NewSourceMapWriter("out.js", "")
	w.Write(Fragment{Content: "X", SrcPath: "a.js", SrcLine: 0, SrcCol: 0})
	w.Write(Fragment{Content: "\n"})
	w.Write(Fragment{Content: "Y", SrcPath: "b.js", SrcLine: 0, SrcCol: 0})

	if got := w.String(); got != "X\nY" {
		t.Fatalf("got %q", got)
	}

	posA := w.Map.GetSource(0, 0)
	if !posA.Found || posA.Source != "a.js" || posA.Line != 0 || posA.Column != 0 {
		t.Fatalf("line0,col0 -> %+v", posA)
	}
	posB := w.Map.GetSource(1, 0)
	if !posB.Found || posB.Source != "b.js" || posB.Line != 0 || posB.Column != 0 {
		t.Fatalf("line1,col0 -> %+v", posB)
	}
}

func TestSourceMapWriterEndAssignsToFile(t *testing.T) {
	w := NewSourceMapWriter("out.js", "")
	w.Write(Fragment{Content: "hi", SrcPath: "a.js"})

	f := NewFile(DefaultConfig(), nil, "", "/out", "combined.js")
	w.End(f)

	if f.Content() != "hi" {
		t.Fatalf("content = %q", f.Content())
	}
	if f.SourceMap() == nil {
		t.Fatal("expected source map to be attached")
	}
}

func TestFragmentSliceRespectsStartEnd(t *testing.T) {
	fr := Fragment{Content: "abcdef", Start: 1, End: 4}
	if got := fr.slice(); got != "bcd" {
		t.Fatalf("got %q", got)
	}
}

func TestWriterMultilineFragmentAcrossCalls(t *testing.T) {
	w := NewWriter("")
	for _, frag := range strings.Split("one\ntwo\nthree", "\n") {
		w.Write(Fragment{Content: frag + "\n"})
	}
	if w.Line() != 3 {
		t.Fatalf("line = %d, want 3", w.Line())
	}
}
