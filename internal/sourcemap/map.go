// Package sourcemap implements the Source Map Revision 3 format: parsing,
// generation, querying in both directions, and composing a map across
// pipeline stages (C3 of the engine's design notes).
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Mapping is one point in a generated line's sorted mapping list.
type Mapping struct {
	GeneratedColumn int32
	HasSource       bool
	SourceIndex     int32
	SourceLine      int32
	SourceColumn    int32
	HasName         bool
	NameIndex       int32

	// sourceName/nameName are transient staging fields used only while
	// ApplySourceMap is composing a mapping that refers to a source or
	// name not yet interned in this map's tables; dropSource resolves
	// them into concrete indices and clears them.
	sourceName string
	nameName   string
}

// Map is an in-memory, mutable Source Map v3 structure: a sources list,
// optional per-source contents, a names list, and a sparse
// two-dimensional mappings table keyed by generated line.
type Map struct {
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []string // parallel to Sources; entries may be ""
	Names          []string

	// Rows[line] holds that generated line's mapping points, kept sorted
	// by GeneratedColumn. A missing line has a nil slice.
	Rows [][]Mapping

	sourceIndex map[string]int
	nameIndex   map[string]int
}

// New creates an empty map.
func New() *Map {
	return &Map{
		sourceIndex: make(map[string]int),
		nameIndex:   make(map[string]int),
	}
}

func (m *Map) ensureRow(line int32) {
	for int32(len(m.Rows)) <= line {
		m.Rows = append(m.Rows, nil)
	}
}

// sourceIdx returns the index of src in m.Sources, adding it if absent.
func (m *Map) sourceIdx(src string) int32 {
	if m.sourceIndex == nil {
		m.sourceIndex = make(map[string]int)
		for i, s := range m.Sources {
			m.sourceIndex[s] = i
		}
	}
	if i, ok := m.sourceIndex[src]; ok {
		return int32(i)
	}
	i := len(m.Sources)
	m.Sources = append(m.Sources, src)
	m.sourceIndex[src] = i
	return int32(i)
}

func (m *Map) nameIdx(name string) int32 {
	if m.nameIndex == nil {
		m.nameIndex = make(map[string]int)
		for i, n := range m.Names {
			m.nameIndex[n] = i
		}
	}
	if i, ok := m.nameIndex[name]; ok {
		return int32(i)
	}
	i := len(m.Names)
	m.Names = append(m.Names, name)
	m.nameIndex[name] = i
	return int32(i)
}

// SetSourceContent records the original content of a source, adding the
// source to the Sources list if it is not already present.
func (m *Map) SetSourceContent(src, content string) {
	i := m.sourceIdx(src)
	for int32(len(m.SourcesContent)) <= i {
		m.SourcesContent = append(m.SourcesContent, "")
	}
	m.SourcesContent[i] = content
}

// AddMapping inserts a mapping point, insertion-sorted on GeneratedColumn
// within its line; a duplicate column replaces the prior entry, per
// spec.md 4.3 ("addMapping").
func (m *Map) AddMapping(genLine, genCol int32, src string, srcLine, srcCol int32, name string) {
	mp := Mapping{GeneratedColumn: genCol}
	if src != "" {
		mp.HasSource = true
		mp.SourceIndex = m.sourceIdx(src)
		mp.SourceLine = srcLine
		mp.SourceColumn = srcCol
	}
	if name != "" {
		mp.HasName = true
		mp.NameIndex = m.nameIdx(name)
	}
	m.addRaw(genLine, mp)
}

func (m *Map) addRaw(genLine int32, mp Mapping) {
	m.ensureRow(genLine)
	row := m.Rows[genLine]
	i := sort.Search(len(row), func(i int) bool {
		return row[i].GeneratedColumn >= mp.GeneratedColumn
	})
	if i < len(row) && row[i].GeneratedColumn == mp.GeneratedColumn {
		row[i] = mp
		m.Rows[genLine] = row
		return
	}
	row = append(row, Mapping{})
	copy(row[i+1:], row[i:])
	row[i] = mp
	m.Rows[genLine] = row
}

// SourceName resolves a mapping's source path, or "" if it carries none.
func (m *Map) SourceName(mp Mapping) string {
	if !mp.HasSource || int(mp.SourceIndex) >= len(m.Sources) {
		return ""
	}
	return m.Sources[mp.SourceIndex]
}

// Name resolves a mapping's original name, or "" if it carries none.
func (m *Map) Name(mp Mapping) string {
	if !mp.HasName || int(mp.NameIndex) >= len(m.Names) {
		return ""
	}
	return m.Names[mp.NameIndex]
}

// ComputeLines fills missing per-line rows by propagating the previous
// line's trailing mapping one logical line downward, per spec.md 4.3
// ("computeLines").
func (m *Map) ComputeLines() {
	var carry *Mapping
	for i := range m.Rows {
		if len(m.Rows[i]) == 0 {
			if carry != nil {
				c := *carry
				c.GeneratedColumn = 0
				m.Rows[i] = []Mapping{c}
			}
			continue
		}
		last := m.Rows[i][len(m.Rows[i])-1]
		carry = &last
	}
}

// v3Raw is the on-disk JSON shape of a Source Map v3 document; the
// mappings table travels in it as a VLQ-encoded string.
type v3Raw struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Emit serializes the map to Source Map v3 JSON.
func (m *Map) Emit() ([]byte, error) {
	raw := v3Raw{
		Version:    3,
		File:       m.File,
		SourceRoot: m.SourceRoot,
		Sources:    m.Sources,
		Names:      m.Names,
		Mappings:   m.encodeMappings(),
	}
	if len(m.SourcesContent) > 0 {
		raw.SourcesContent = m.SourcesContent
	}
	return json.Marshal(&raw)
}

func (m *Map) encodeMappings() string {
	var b strings.Builder

	prevGenCol := int32(0)
	prevSrcIdx := int32(0)
	prevSrcLine := int32(0)
	prevSrcCol := int32(0)
	prevName := int32(0)

	for line, row := range m.Rows {
		if line > 0 {
			b.WriteByte(';')
		}
		prevGenCol = 0
		for i, mp := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeVLQ(&b, int64(mp.GeneratedColumn-prevGenCol))
			prevGenCol = mp.GeneratedColumn
			if mp.HasSource {
				encodeVLQ(&b, int64(mp.SourceIndex-prevSrcIdx))
				prevSrcIdx = mp.SourceIndex
				encodeVLQ(&b, int64(mp.SourceLine-prevSrcLine))
				prevSrcLine = mp.SourceLine
				encodeVLQ(&b, int64(mp.SourceColumn-prevSrcCol))
				prevSrcCol = mp.SourceColumn
				if mp.HasName {
					encodeVLQ(&b, int64(mp.NameIndex-prevName))
					prevName = mp.NameIndex
				}
			}
		}
	}
	return b.String()
}

// Parse decodes Source Map v3 JSON. Indexed ("sections") maps and
// versions other than 3 are rejected, per spec.md 4.3.
func Parse(data []byte) (*Map, error) {
	var raw struct {
		Version  int             `json:"version"`
		Sections json.RawMessage `json:"sections"`
		v3Raw
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sourcemap: invalid json: %w", err)
	}
	if len(raw.Sections) > 0 {
		return nil, fmt.Errorf("sourcemap: indexed (sections) maps are not supported")
	}
	if raw.Version != 3 {
		return nil, fmt.Errorf("sourcemap: unsupported version %d", raw.Version)
	}

	m := New()
	m.File = raw.File
	m.SourceRoot = raw.SourceRoot
	m.Sources = append([]string(nil), raw.Sources...)
	m.SourcesContent = append([]string(nil), raw.SourcesContent...)
	m.Names = append([]string(nil), raw.Names...)
	for i, s := range m.Sources {
		m.sourceIndex[s] = i
	}
	for i, n := range m.Names {
		m.nameIndex[n] = i
	}

	if err := m.decodeMappings(raw.Mappings); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) decodeMappings(s string) error {
	lines := strings.Split(s, ";")
	m.Rows = make([][]Mapping, len(lines))

	srcIdx, srcLine, srcCol, nameIdx := int64(0), int64(0), int64(0), int64(0)

	for lineNo, line := range lines {
		if line == "" {
			continue
		}
		genCol := int64(0)
		segs := strings.Split(line, ",")
		var row []Mapping
		for _, seg := range segs {
			if seg == "" {
				continue
			}
			pos := 0
			var fields []int64
			for pos < len(seg) {
				v, next, err := decodeVLQ(seg, pos)
				if err != nil {
					return err
				}
				fields = append(fields, v)
				pos = next
			}
			if len(fields) != 1 && len(fields) != 4 && len(fields) != 5 {
				return fmt.Errorf("sourcemap: malformed segment %q", seg)
			}

			genCol += fields[0]
			gc, err := clampInt32(genCol)
			if err != nil {
				return err
			}
			mp := Mapping{GeneratedColumn: gc}

			if len(fields) >= 4 {
				srcIdx += fields[1]
				srcLine += fields[2]
				srcCol += fields[3]
				si, err := clampInt32(srcIdx)
				if err != nil {
					return err
				}
				sl, err := clampInt32(srcLine)
				if err != nil {
					return err
				}
				sc, err := clampInt32(srcCol)
				if err != nil {
					return err
				}
				mp.HasSource = true
				mp.SourceIndex = si
				mp.SourceLine = sl
				mp.SourceColumn = sc
			}
			if len(fields) == 5 {
				nameIdx += fields[4]
				ni, err := clampInt32(nameIdx)
				if err != nil {
					return err
				}
				mp.HasName = true
				mp.NameIndex = ni
			}
			row = append(row, mp)
		}
		m.Rows[lineNo] = row
	}
	return nil
}
