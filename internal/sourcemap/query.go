package sourcemap

import "sort"

// SourcePos is the result of a generated -> source query.
type SourcePos struct {
	Source string
	Line   int32
	Column int32
	Name   string
	Found  bool
}

// GetSource finds the greatest mapping whose GeneratedColumn <= genCol on
// genLine; if none exists on that line, it walks backward to the last
// mapped prior line and projects (line-delta, column = genCol), per
// spec.md 4.3.
func (m *Map) GetSource(genLine, genCol int32) SourcePos {
	if int(genLine) < len(m.Rows) {
		if mp, ok := m.floorOnLine(genLine, genCol); ok {
			return m.toSourcePos(mp)
		}
	}

	for line := int(genLine) - 1; line >= 0; line-- {
		row := m.Rows[line]
		if len(row) == 0 {
			continue
		}
		last := row[len(row)-1]
		if !last.HasSource {
			return SourcePos{}
		}
		delta := genLine - int32(line)
		pos := last
		pos.SourceLine += delta
		pos.SourceColumn = genCol
		return m.toSourcePos(pos)
	}
	return SourcePos{}
}

func (m *Map) floorOnLine(line, col int32) (Mapping, bool) {
	row := m.Rows[line]
	if len(row) == 0 {
		return Mapping{}, false
	}
	i := sort.Search(len(row), func(i int) bool {
		return row[i].GeneratedColumn > col
	})
	if i == 0 {
		return Mapping{}, false
	}
	return row[i-1], true
}

func (m *Map) toSourcePos(mp Mapping) SourcePos {
	if !mp.HasSource {
		return SourcePos{}
	}
	return SourcePos{
		Source: m.SourceName(mp),
		Line:   mp.SourceLine,
		Column: mp.SourceColumn,
		Name:   m.Name(mp),
		Found:  true,
	}
}

// GeneratedPos is the result of a source -> generated query.
type GeneratedPos struct {
	Line   int32
	Column int32
	Found  bool
}

// GetGenerated scans the mappings table for all points matching
// (srcPath, srcLine, srcCol) and projects to a generated position,
// constrained so the projected generated column lies within the owning
// mapping's column span, per spec.md 4.3.
func (m *Map) GetGenerated(srcPath string, srcLine, srcCol int32) GeneratedPos {
	srcIdx, ok := m.sourceIndex[srcPath]
	if !ok {
		return GeneratedPos{}
	}

	for line := 0; line < len(m.Rows); line++ {
		row := m.Rows[line]
		for i, mp := range row {
			if !mp.HasSource || int(mp.SourceIndex) != srcIdx || mp.SourceLine != srcLine {
				continue
			}
			spanEnd := int32(1 << 30)
			if i+1 < len(row) {
				spanEnd = row[i+1].GeneratedColumn
			}
			colDelta := srcCol - mp.SourceColumn
			genCol := mp.GeneratedColumn + colDelta
			if genCol < mp.GeneratedColumn {
				genCol = mp.GeneratedColumn
			}
			if genCol >= spanEnd {
				genCol = spanEnd - 1
				if genCol < mp.GeneratedColumn {
					genCol = mp.GeneratedColumn
				}
			}
			return GeneratedPos{Line: int32(line), Column: genCol, Found: true}
		}
	}
	return GeneratedPos{}
}
