package sourcemap

import "sort"

// ApplySourceMap rewrites m (which maps A -> B) so its mappings point
// from B back to upstream's origin, given upstream (which maps
// origin -> A, with upstream.File naming one of m's sources).
// This is map composition across two pipeline stages (spec.md 4.3,
// "applySourceMap"). When a single m mapping spans a region containing
// multiple upstream mappings, additional m mappings are inserted at the
// corresponding column offsets. The source index of upstream.File is
// removed from m's source list once composition completes.
func (m *Map) ApplySourceMap(upstream *Map) {
	if upstream == nil || upstream.File == "" {
		return
	}
	target, ok := m.sourceIndex[upstream.File]
	if !ok {
		return
	}
	targetIdx := int32(target)

	for line := range m.Rows {
		m.Rows[line] = composeRow(m.Rows[line], targetIdx, upstream)
	}
	m.dropSource(targetIdx)
}

// composeRow rewrites every mapping in row whose source is targetIdx,
// splicing in extra mapping points where upstream has finer-grained
// breakpoints within the original mapping's column span.
func composeRow(row []Mapping, targetIdx int32, upstream *Map) []Mapping {
	var out []Mapping
	for i, mp := range row {
		if !mp.HasSource || mp.SourceIndex != targetIdx {
			out = append(out, mp)
			continue
		}

		spanEnd := int32(1 << 30)
		if i+1 < len(row) {
			spanEnd = row[i+1].GeneratedColumn
		}
		width := spanEnd - mp.GeneratedColumn

		srcLine := mp.SourceLine
		srcColStart := mp.SourceColumn

		base := upstream.GetSource(srcLine, srcColStart)
		rewritten := mp
		if base.Found {
			rewritten = projectMapping(mp, upstream, base)
		} else {
			rewritten.HasSource = false
			rewritten.HasName = false
		}
		out = append(out, rewritten)

		if width <= 0 || int(srcLine) >= len(upstream.Rows) {
			continue
		}
		for _, up := range upstream.Rows[srcLine] {
			if up.GeneratedColumn <= srcColStart || up.GeneratedColumn >= srcColStart+width {
				continue
			}
			if !up.HasSource {
				continue
			}
			extra := Mapping{
				GeneratedColumn: mp.GeneratedColumn + (up.GeneratedColumn - srcColStart),
				HasSource:       true,
				SourceLine:      up.SourceLine,
				SourceColumn:    up.SourceColumn,
				sourceName:      upstream.SourceName(up),
			}
			if name := upstream.Name(up); name != "" {
				extra.HasName = true
				extra.nameName = name
			}
			out = append(out, extra)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedColumn < out[j].GeneratedColumn
	})
	return out
}

// projectMapping rewrites mp to point at the resolved upstream source
// position. A name already attached to mp belongs to this stage's own
// token and is kept; only an absent name falls back to whatever name
// upstream resolved at that position.
func projectMapping(mp Mapping, upstream *Map, resolved SourcePos) Mapping {
	out := mp
	out.HasSource = true
	out.SourceLine = resolved.Line
	out.SourceColumn = resolved.Column
	out.sourceName = resolved.Source
	if !out.HasName && resolved.Name != "" {
		out.HasName = true
		out.nameName = resolved.Name
	}
	return out
}

// dropSource removes sourceIdx from m's Sources list, renumbering every
// remaining mapping's SourceIndex and resolving any pending sourceName
// markers left by projectMapping into concrete indices in m's own table.
func (m *Map) dropSource(droppedIdx int32) {
	// Resolve pending name markers from composition into concrete
	// indices first, since those may reference brand-new sources/names.
	for line := range m.Rows {
		for i, mp := range m.Rows[line] {
			if mp.sourceName != "" {
				m.Rows[line][i].SourceIndex = m.sourceIdx(mp.sourceName)
				m.Rows[line][i].sourceName = ""
			}
			if mp.nameName != "" {
				m.Rows[line][i].NameIndex = m.nameIdx(mp.nameName)
				m.Rows[line][i].nameName = ""
			}
		}
	}

	newSources := make([]string, 0, len(m.Sources))
	remap := make([]int32, len(m.Sources))
	for i, s := range m.Sources {
		if int32(i) == droppedIdx {
			remap[i] = -1
			continue
		}
		remap[i] = int32(len(newSources))
		newSources = append(newSources, s)
	}
	var newContent []string
	if len(m.SourcesContent) > 0 {
		newContent = make([]string, 0, len(newSources))
		for i := range m.Sources {
			if int32(i) == droppedIdx {
				continue
			}
			if i < len(m.SourcesContent) {
				newContent = append(newContent, m.SourcesContent[i])
			} else {
				newContent = append(newContent, "")
			}
		}
	}

	for line := range m.Rows {
		row := m.Rows[line]
		for i, mp := range row {
			if mp.HasSource {
				row[i].SourceIndex = remap[mp.SourceIndex]
				if row[i].SourceIndex < 0 {
					row[i].HasSource = false
				}
			}
		}
	}

	m.Sources = newSources
	m.SourcesContent = newContent
	m.sourceIndex = make(map[string]int, len(newSources))
	for i, s := range newSources {
		m.sourceIndex[s] = i
	}
}
