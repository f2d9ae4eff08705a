package sourcemap

import "regexp"

var urlCommentRe = regexp.MustCompile(
	`(?m)(?:` +
		`//[#@] sourceMappingURL=(?P<line>[^\r\n]*)` +
		`|/\*[#@] sourceMappingURL=(?P<block>[^\r\n]*?) \*/` +
		`)\s*$`,
)

// EmitSourceMapURL replaces an existing "# sourceMappingURL=" comment
// (matching either the "//#" line-comment form or the "/*# ... */" block
// form, including the legacy "@" spelling of either) or appends one in
// the requested syntax, per spec.md 4.3.
func EmitSourceMapURL(content, url string, singleLine bool) string {
	comment := blockComment(url)
	if singleLine {
		comment = lineComment(url)
	}

	if loc := urlCommentRe.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + comment
	}

	sep := "\n"
	if content == "" {
		sep = ""
	}
	return content + sep + comment
}

func lineComment(url string) string { return "//# sourceMappingURL=" + url }
func blockComment(url string) string { return "/*# sourceMappingURL=" + url + " */" }
