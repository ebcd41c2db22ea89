package processor

import (
	"github.com/mcpproxy/mcpproxy/internal/domain/jsonvalue"
)

// ProjectionProcessor performs include/exclude field-path projection over
// arbitrary JSON-shaped content.
type ProjectionProcessor struct{}

// NewProjectionProcessor constructs a ProjectionProcessor.
func NewProjectionProcessor() *ProjectionProcessor { return &ProjectionProcessor{} }

func (p *ProjectionProcessor) Name() string { return "projection" }

func (p *ProjectionProcessor) Process(content string, params Params) Result {
	if !params.Has("fields") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	fields := params.StringSlice("fields")
	mode := params.String("mode")
	if mode == "" {
		mode = "include"
	}

	root, err := jsonvalue.Parse([]byte(content))
	if err != nil {
		return Result{
			Content:       content,
			OriginalSize:  len(content),
			ProcessedSize: len(content),
			Applied:       false,
			Metadata:      map[string]any{"note": "non-JSON content, passed through unchanged"},
		}
	}

	paths := jsonvalue.ParsePaths(fields)
	var out jsonvalue.Value
	switch mode {
	case "exclude":
		out = projectExclude(root, paths, nil)
	default:
		out = projectInclude(root, paths, nil)
	}

	encoded, err := jsonvalue.Marshal(out)
	if err != nil {
		return Result{
			Content:       content,
			OriginalSize:  len(content),
			ProcessedSize: len(content),
			Error:         err.Error(),
		}
	}

	return Result{
		Content:       string(encoded),
		OriginalSize:  len(content),
		ProcessedSize: len(encoded),
		Applied:       true,
		Metadata:      map[string]any{"mode": mode, "fieldCount": len(fields)},
	}
}

// projectInclude keeps a node iff at least one descendant leaf path
// matches a requested field.
func projectInclude(v jsonvalue.Value, paths []jsonvalue.Path, walk []string) jsonvalue.Value {
	if jsonvalue.MatchesAny(paths, walk) {
		if keysOnly, ok := matchesKeysTerminal(v, paths, walk); ok {
			return keysOnly
		}
		return v
	}
	if !v.IsContainer() {
		return jsonvalue.Null()
	}
	if !jsonvalue.IsPrefixOfAny(paths, walk) {
		return emptyLike(v)
	}

	switch v.Kind {
	case jsonvalue.KindObject:
		out := jsonvalue.NewOrderedMap()
		for _, k := range v.Object.Keys() {
			child, _ := v.Object.Get(k)
			childWalk := append(append([]string(nil), walk...), k)
			projected := projectInclude(child, paths, childWalk)
			if keepsAnyLeaf(paths, childWalk) {
				out.Set(k, projected)
			}
		}
		return jsonvalue.Obj(out)
	case jsonvalue.KindArray:
		out := make([]jsonvalue.Value, 0, len(v.Array))
		for _, elem := range v.Array {
			// array elements don't add a named segment; the "orders[]" marker
			// already consumed the array's own name, so the walk only grows
			// when descending object keys beneath each element.
			out = append(out, projectInclude(elem, paths, walk))
		}
		return jsonvalue.Arr(out)
	default:
		return jsonvalue.Null()
	}
}

// keepsAnyLeaf reports whether childWalk is itself a leaf match or could
// still reach one by further descent, used to decide whether to retain a
// projected child in include mode.
func keepsAnyLeaf(paths []jsonvalue.Path, walk []string) bool {
	return jsonvalue.MatchesAny(paths, walk) || jsonvalue.IsPrefixOfAny(paths, walk)
}

// matchesKeysTerminal handles the "_keys" special path: when walk exactly
// satisfies a "_keys" expression and v is an object, return its key list as
// a JSON array instead of the object itself.
func matchesKeysTerminal(v jsonvalue.Value, paths []jsonvalue.Path, walk []string) (jsonvalue.Value, bool) {
	if v.Kind != jsonvalue.KindObject {
		return jsonvalue.Value{}, false
	}
	for _, p := range paths {
		segs := p.Segments
		if len(segs) == 0 || segs[len(segs)-1].Kind != jsonvalue.SegKeys {
			continue
		}
		if !jsonvalue.MatchesAny([]jsonvalue.Path{p}, walk) {
			continue
		}
		keys := v.Object.Keys()
		arr := make([]jsonvalue.Value, 0, len(keys))
		for _, k := range keys {
			arr = append(arr, jsonvalue.String(k))
		}
		return jsonvalue.Arr(arr), true
	}
	return jsonvalue.Value{}, false
}

// projectExclude removes any node whose path matches an excluded field,
// keeping everything else.
func projectExclude(v jsonvalue.Value, paths []jsonvalue.Path, walk []string) jsonvalue.Value {
	if jsonvalue.MatchesAny(paths, walk) {
		return emptyLike(v)
	}
	if !v.IsContainer() {
		return v
	}

	switch v.Kind {
	case jsonvalue.KindObject:
		out := jsonvalue.NewOrderedMap()
		for _, k := range v.Object.Keys() {
			child, _ := v.Object.Get(k)
			childWalk := append(append([]string(nil), walk...), k)
			if jsonvalue.MatchesAny(paths, childWalk) {
				continue
			}
			out.Set(k, projectExclude(child, paths, childWalk))
		}
		return jsonvalue.Obj(out)
	case jsonvalue.KindArray:
		out := make([]jsonvalue.Value, 0, len(v.Array))
		for _, elem := range v.Array {
			out = append(out, projectExclude(elem, paths, walk))
		}
		return jsonvalue.Arr(out)
	default:
		return v
	}
}

// emptyLike returns the zero-value container of the same shape as v (an
// empty object/array), or null for scalars, used when pruning keeps the
// container but drops its content: empty containers produced by pruning
// are preserved, distinguishable from absent.
func emptyLike(v jsonvalue.Value) jsonvalue.Value {
	switch v.Kind {
	case jsonvalue.KindObject:
		return jsonvalue.Obj(jsonvalue.NewOrderedMap())
	case jsonvalue.KindArray:
		return jsonvalue.Arr(nil)
	default:
		return jsonvalue.Null()
	}
}
