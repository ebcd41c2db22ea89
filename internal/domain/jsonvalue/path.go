package jsonvalue

import "strings"

// SegmentKind identifies one component of a parsed field path.
type SegmentKind int

const (
	// SegKey matches a literal object key.
	SegKey SegmentKind = iota
	// SegWildcard ("*") matches every key at that level.
	SegWildcard
	// SegArray ("name[]") matches the named array and descends into every element.
	SegArray
	// SegKeys ("_keys") returns the top-level keys of an object and stops descent.
	SegKeys
)

// Segment is one parsed component of a field path.
type Segment struct {
	Kind SegmentKind
	Name string // literal key name for SegKey and SegArray
}

// Path is a field expression parsed once into an AST.
type Path struct {
	Segments []Segment
	raw      string
}

// ParsePath parses a dotted field expression such as "users[].email" or
// "*.id" or "_keys" into a Path.
func ParsePath(expr string) Path {
	parts := strings.Split(expr, ".")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "_keys":
			segs = append(segs, Segment{Kind: SegKeys})
		case p == "*":
			segs = append(segs, Segment{Kind: SegWildcard})
		case strings.HasSuffix(p, "[]"):
			segs = append(segs, Segment{Kind: SegArray, Name: strings.TrimSuffix(p, "[]")})
		default:
			segs = append(segs, Segment{Kind: SegKey, Name: p})
		}
	}
	return Path{Segments: segs, raw: expr}
}

// ParsePaths parses a set of field expressions.
func ParsePaths(exprs []string) []Path {
	paths := make([]Path, 0, len(exprs))
	for _, e := range exprs {
		paths = append(paths, ParsePath(e))
	}
	return paths
}

// String returns the original field expression.
func (p Path) String() string { return p.raw }

// matchesWalk reports whether the path so far (given by walk, a list of
// object-key / array-element steps taken) is consistent with this Path —
// i.e. it could still be a match once traversal completes. A leaf node
// satisfies the expression when walk has consumed every segment.
//
// "_keys" is a zero-width terminal: it never consumes a walk step of its
// own, it only asserts "stop here" at the depth of the segment before it.
// So a bare "_keys" (one segment) matches at the root (walk depth 0), and
// "obj._keys" (two segments) matches once walk == ["obj"] (depth 1).
func (p Path) matchesWalk(walk []string) (matched bool, isPrefix bool) {
	segs := p.Segments
	if n := len(segs); n > 0 && segs[n-1].Kind == SegKeys {
		prefix := segs[:n-1]
		keysDepth := len(prefix)
		switch {
		case len(walk) > keysDepth:
			return false, false
		case len(walk) == keysDepth:
			ok := matchesPrefixSegments(prefix, walk)
			return ok, false
		default:
			return false, matchesPrefixSegments(prefix[:len(walk)], walk)
		}
	}

	if len(walk) > len(segs) {
		// Descended past this path's depth without it ever being a leaf
		// match: nothing further down this branch is relevant to it.
		return false, false
	}
	if !matchesPrefixSegments(segs[:len(walk)], walk) {
		return false, false
	}
	if len(walk) < len(segs) {
		return false, true
	}
	return true, true
}

// matchesPrefixSegments reports whether each walk[i] satisfies segs[i],
// respecting wildcard (always matches) and array/key name equality. Panics
// if walk is shorter than segs; callers only pass equal-length slices.
func matchesPrefixSegments(segs []Segment, walk []string) bool {
	for i, seg := range segs {
		step := walk[i]
		switch seg.Kind {
		case SegWildcard:
			continue
		case SegArray:
			if seg.Name != "" && seg.Name != step {
				return false
			}
		case SegKey:
			if seg.Name != step {
				return false
			}
		}
	}
	return true
}

// MatchesAny reports whether walk exactly satisfies any of paths (a leaf match).
func MatchesAny(paths []Path, walk []string) bool {
	for _, p := range paths {
		if m, _ := p.matchesWalk(walk); m {
			return true
		}
	}
	return false
}

// IsPrefixOfAny reports whether walk is a strict or equal prefix of any
// path in paths — i.e. descending further from here could still reach a
// match. Used by include-mode pruning to decide whether to keep
// descending into a container that isn't itself a leaf match.
func IsPrefixOfAny(paths []Path, walk []string) bool {
	for _, p := range paths {
		if _, isPrefix := p.matchesWalk(walk); isPrefix {
			return true
		}
	}
	return false
}
