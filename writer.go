package digo

import (
	"strings"
	"unicode"

	"shanhu.io/digo/internal/sourcemap"
)

// Fragment is one slice of text appended to a Writer, with the optional
// source attribution spec.md 4.5 describes. Start/End default to the
// full extent of Content when both are zero.
type Fragment struct {
	Content string
	Start   int
	End     int

	SrcPath string
	SrcLine int32
	SrcCol  int32

	SourceMap *sourcemap.Map
}

func (fr Fragment) slice() string {
	if fr.Start == 0 && fr.End == 0 {
		return fr.Content
	}
	return fr.Content[fr.Start:fr.End]
}

// Writer is an append-only text writer that tracks the current generated
// (line, column) so a source-map-aware subclass can emit synchronized
// mappings across concatenated fragments (spec.md 4.5). The plain Writer
// itself does not track mappings; SourceMapWriter embeds it. It follows
// the same line-oriented-buffered-writer idiom the
// teacher's Dockerfile scanner in docker_build.go uses for its own
// line-aware text processing.
type Writer struct {
	buf    strings.Builder
	indent string

	line int32
	col  int32

	atLineStart bool
}

// NewWriter creates an empty Writer that inserts indent after every
// newline it emits.
func NewWriter(indent string) *Writer {
	return &Writer{indent: indent}
}

// Write appends fr's sliced content, tracking the writer's position.
func (w *Writer) Write(fr Fragment) {
	w.writeRaw(fr.slice())
}

func (w *Writer) writeRaw(s string) {
	for len(s) > 0 {
		if w.atLineStart && w.indent != "" {
			w.buf.WriteString(w.indent)
			w.col += int32(len(w.indent))
			w.atLineStart = false
		}
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			w.buf.WriteString(s)
			w.col += int32(len(s))
			return
		}
		w.buf.WriteString(s[:nl+1])
		w.line++
		w.col = 0
		w.atLineStart = true
		s = s[nl+1:]
	}
}

// Line is the writer's current 0-based generated line.
func (w *Writer) Line() int32 { return w.line }

// Col is the writer's current 0-based generated column.
func (w *Writer) Col() int32 { return w.col }

// String returns the accumulated text.
func (w *Writer) String() string { return w.buf.String() }

// SourceMapWriter additionally emits a synchronized source map as it
// writes fragments (spec.md 4.5).
type SourceMapWriter struct {
	*Writer
	Map              *sourcemap.Map
	LineMappingsOnly bool

	lastClass charClass
}

// NewSourceMapWriter creates a SourceMapWriter targeting file (the v3
// map's "file" field) with the given indent string.
func NewSourceMapWriter(file, indent string) *SourceMapWriter {
	m := sourcemap.New()
	m.File = file
	return &SourceMapWriter{Writer: NewWriter(indent), Map: m, lastClass: classNone}
}

// Write appends fr, inserting a mapping at the fragment's first
// character, at every identifier/whitespace/punctuation class
// transition (unless LineMappingsOnly), and copying fr's own map's
// overlapping mappings adjusted to this writer's current column when fr
// carries one.
func (w *SourceMapWriter) Write(fr Fragment) {
	content := fr.slice()
	if content == "" {
		return
	}

	startLine, startCol := w.Line(), w.Col()
	if fr.SrcPath != "" {
		w.addMapping(startLine, startCol, fr.SrcPath, fr.SrcLine, fr.SrcCol, "")
	}

	if fr.SourceMap != nil {
		w.mergeFragmentMap(fr, startLine, startCol)
	}

	if w.LineMappingsOnly || fr.SrcPath == "" {
		w.Writer.writeRaw(content)
		return
	}

	w.writeWithClassTransitions(content, fr)
}

func (w *SourceMapWriter) writeWithClassTransitions(content string, fr Fragment) {
	offset := int32(0)
	for _, r := range content {
		cls := classOf(r)
		if cls != w.lastClass && cls != classNewline {
			line, col := w.Line(), w.Col()
			srcCol := fr.SrcCol + offset
			w.addMapping(line, col, fr.SrcPath, fr.SrcLine, srcCol, "")
		}
		w.lastClass = cls
		w.Writer.writeRaw(string(r))
		if cls == classNewline {
			offset = 0
		} else {
			offset++
		}
	}
}

func (w *SourceMapWriter) addMapping(genLine, genCol int32, srcPath string, srcLine, srcCol int32, name string) {
	w.Map.AddMapping(genLine, genCol, srcPath, srcLine, srcCol, name)
}

// mergeFragmentMap copies fr.SourceMap's mappings that fall within
// [fr.Start, fr.End) of the original fragment's first line into this
// writer's map, adjusted to (startLine, startCol); first-line mappings
// before the fragment's start column and last-line mappings at or past
// the fragment's end column are dropped, per spec.md 4.5.
func (w *SourceMapWriter) mergeFragmentMap(fr Fragment, startLine, startCol int32) {
	if len(fr.SourceMap.Rows) == 0 {
		return
	}
	end := fr.End
	if fr.Start == 0 && fr.End == 0 {
		end = len(fr.Content)
	}
	lastLine := int32(len(fr.SourceMap.Rows) - 1)
	for line, row := range fr.SourceMap.Rows {
		for _, mp := range row {
			if int32(line) == 0 && mp.GeneratedColumn < int32(fr.Start) {
				continue
			}
			if int32(line) == lastLine && mp.GeneratedColumn >= int32(end) {
				continue
			}
			if !mp.HasSource {
				continue
			}
			genLine := startLine + int32(line)
			genCol := mp.GeneratedColumn
			if int32(line) == 0 {
				genCol = startCol + (mp.GeneratedColumn - int32(fr.Start))
			}
			srcName := ""
			if mp.HasName && mp.NameIndex >= 0 && int(mp.NameIndex) < len(fr.SourceMap.Names) {
				srcName = fr.SourceMap.Names[mp.NameIndex]
			}
			w.addMapping(genLine, genCol, fr.SourceMap.Sources[mp.SourceIndex], mp.SourceLine, mp.SourceColumn, srcName)
		}
	}
}

// End assigns the accumulated buffer and map to f.
func (w *SourceMapWriter) End(f *File) {
	w.Map.ComputeLines()
	f.SetContent(w.String())
	f.SetSourceMap(w.Map)
}

type charClass int

const (
	classNone charClass = iota
	classIdent
	classSpace
	classPunct
	classNewline
)

func classOf(r rune) charClass {
	switch {
	case r == '\n':
		return classNewline
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
		return classIdent
	default:
		return classPunct
	}
}
