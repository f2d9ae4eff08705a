// Package pathmatch normalizes paths and compiles glob/regex/predicate
// patterns into matchers, mirroring the path and matcher responsibilities
// of a gulp-style build engine (C1 in the engine's design notes).
package pathmatch

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// caseSensitive reports whether paths compare case-sensitively on this
// host: false when the host path separator is a backslash (Windows-style
// paths), true otherwise.
func caseSensitive() bool { return filepath.Separator != '\\' }

// ToSlash converts a platform path to a logical, forward-slash path.
func ToSlash(p string) string { return filepath.ToSlash(p) }

// FromSlash converts a logical forward-slash path to a platform path.
func FromSlash(p string) string { return filepath.FromSlash(p) }

// Normalize cleans a path and converts it to use forward slashes.
func Normalize(p string) string {
	if p == "" {
		return p
	}
	return path.Clean(ToSlash(p))
}

// Resolve resolves p against base (if p is relative) and returns an
// absolute, cleaned, forward-slash path.
func Resolve(base, p string) string {
	if p == "" {
		return Normalize(base)
	}
	if path.IsAbs(ToSlash(p)) {
		return Normalize(p)
	}
	return Normalize(path.Join(ToSlash(base), ToSlash(p)))
}

// Relative returns p expressed relative to base, using forward slashes.
func Relative(base, p string) (string, error) {
	b := FromSlash(Normalize(base))
	q := FromSlash(Normalize(p))
	rel, err := filepath.Rel(b, q)
	if err != nil {
		return "", err
	}
	return ToSlash(rel), nil
}

// CommonDir returns the longest shared prefix of a and b that ends on a
// path-separator boundary.
func CommonDir(a, b string) string {
	a = Normalize(a)
	b = Normalize(b)
	if a == b {
		return a
	}
	pa := strings.Split(strings.TrimPrefix(a, "/"), "/")
	pb := strings.Split(strings.TrimPrefix(b, "/"), "/")
	abs := strings.HasPrefix(a, "/") && strings.HasPrefix(b, "/")

	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	var common []string
	for i := 0; i < n; i++ {
		ca, cb := pa[i], pb[i]
		if !caseSensitive() {
			ca, cb = strings.ToLower(ca), strings.ToLower(cb)
		}
		if ca != cb {
			break
		}
		common = append(common, pa[i])
	}
	joined := strings.Join(common, "/")
	if abs {
		joined = "/" + joined
	}
	if joined == "" {
		return "/"
	}
	return joined
}

func dirOf(p string) string {
	d := path.Dir(p)
	return d
}

// InDir reports whether child is contained within parent, after
// normalization.
func InDir(parent, child string) bool {
	parent = strings.TrimSuffix(Normalize(parent), "/")
	child = Normalize(child)
	if !caseSensitive() {
		parent = strings.ToLower(parent)
		cmp := strings.ToLower(child)
		return cmp == parent || strings.HasPrefix(cmp, parent+"/")
	}
	return child == parent || strings.HasPrefix(child, parent+"/")
}

// JoinRel joins f onto base the way the teacher's makeRelPath does: the
// result can never escape base, even if f contains "..".
func JoinRel(base, f string) string {
	f = path.Clean(path.Join("/", ToSlash(f)))
	return strings.TrimPrefix(path.Join("/", ToSlash(base), f), "/")
}

// JoinPath is the teacher's makePath: absolute inputs are taken as-is
// (rooted at "/"), relative inputs are joined under base via JoinRel.
func JoinPath(base, f string) string {
	f = ToSlash(f)
	if path.IsAbs(f) {
		return strings.TrimPrefix(path.Clean(f), "/")
	}
	return JoinRel(base, f)
}

func init() {
	// Host-dependent case sensitivity is consulted lazily via
	// caseSensitive(); runtime.GOOS is referenced here only so that the
	// dependency is explicit to readers grepping for platform branches.
	_ = runtime.GOOS
}
