package processor

import (
	"fmt"

	"github.com/mcpproxy/mcpproxy/internal/domain/jsonvalue"
)

const sampleStringChars = 120

// StructureNavigator produces a compact, depth- and size-bounded summary
// of arbitrary content, never the full payload.
type StructureNavigator struct{}

// NewStructureNavigator constructs a StructureNavigator.
func NewStructureNavigator() *StructureNavigator { return &StructureNavigator{} }

func (p *StructureNavigator) Name() string { return "explore" }

func (p *StructureNavigator) Process(content string, params Params) Result {
	maxDepth, ok := params.Int("max_depth")
	if !ok || maxDepth <= 0 {
		maxDepth = 3
	}
	sampleSize, ok := params.Int("sample_size")
	if !ok || sampleSize <= 0 {
		sampleSize = 3
	}

	root, err := jsonvalue.Parse([]byte(content))
	if err != nil {
		summary := jsonvalue.Obj(jsonvalue.NewOrderedMap())
		summary.Object.Set("type", jsonvalue.String("string"))
		summary.Object.Set("length", jsonvalue.NumberFromFloat(float64(len(content))))
		summary.Object.Set("firstNChars", jsonvalue.String(firstNChars(content, sampleStringChars)))
		encoded, _ := jsonvalue.Marshal(summary)
		return Result{
			Content:       string(encoded),
			OriginalSize:  len(content),
			ProcessedSize: len(encoded),
			Applied:       true,
			Metadata:      map[string]any{"note": "non-JSON content summarized as string"},
		}
	}

	summary := summarize(root, maxDepth, sampleSize)
	encoded, err := jsonvalue.Marshal(summary)
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
		Metadata:      map[string]any{"maxDepth": maxDepth, "sampleSize": sampleSize},
	}
}

// summarize produces the structural summary of v, recursing into objects
// and arrays up to maxDepth. At depth 0 (or below), containers are reduced
// to a type/size description without descending further, keeping the
// summary always finite in depth and size.
func summarize(v jsonvalue.Value, depth, sampleSize int) jsonvalue.Value {
	switch v.Kind {
	case jsonvalue.KindObject:
		out := jsonvalue.NewOrderedMap()
		out.Set("type", jsonvalue.String("object"))
		keys := v.Object.Keys()
		keysArr := make([]jsonvalue.Value, 0, len(keys))
		for _, k := range keys {
			keysArr = append(keysArr, jsonvalue.String(k))
		}
		out.Set("keys", jsonvalue.Arr(keysArr))

		if depth <= 0 {
			return jsonvalue.Obj(out)
		}

		entries := jsonvalue.NewOrderedMap()
		for _, k := range keys {
			child, _ := v.Object.Get(k)
			entries.Set(k, summarizeField(child, depth-1, sampleSize))
		}
		out.Set("fields", jsonvalue.Obj(entries))
		return jsonvalue.Obj(out)

	case jsonvalue.KindArray:
		out := jsonvalue.NewOrderedMap()
		out.Set("type", jsonvalue.String("array"))
		out.Set("length", jsonvalue.NumberFromFloat(float64(len(v.Array))))
		out.Set("elementTypeHistogram", elementTypeHistogram(v.Array))

		n := sampleSize
		if n > len(v.Array) {
			n = len(v.Array)
		}
		sample := make([]jsonvalue.Value, 0, n)
		for i := 0; i < n; i++ {
			if depth <= 0 {
				sample = append(sample, jsonvalue.String(v.Array[i].Kind.String()))
			} else {
				sample = append(sample, summarize(v.Array[i], depth-1, sampleSize))
			}
		}
		out.Set("sample", jsonvalue.Arr(sample))
		return jsonvalue.Obj(out)

	case jsonvalue.KindString:
		out := jsonvalue.NewOrderedMap()
		out.Set("type", jsonvalue.String("string"))
		out.Set("length", jsonvalue.NumberFromFloat(float64(len(v.String))))
		out.Set("firstNChars", jsonvalue.String(firstNChars(v.String, sampleStringChars)))
		return jsonvalue.Obj(out)

	default:
		out := jsonvalue.NewOrderedMap()
		out.Set("type", jsonvalue.String(v.Kind.String()))
		out.Set("value", v)
		return jsonvalue.Obj(out)
	}
}

// summarizeField summarizes one object field into its "{type, sizeHint,
// sample}" shape.
func summarizeField(v jsonvalue.Value, depth, sampleSize int) jsonvalue.Value {
	out := jsonvalue.NewOrderedMap()
	out.Set("type", jsonvalue.String(v.Kind.String()))
	switch v.Kind {
	case jsonvalue.KindObject:
		out.Set("sizeHint", jsonvalue.NumberFromFloat(float64(v.Object.Len())))
	case jsonvalue.KindArray:
		out.Set("sizeHint", jsonvalue.NumberFromFloat(float64(len(v.Array))))
	case jsonvalue.KindString:
		out.Set("sizeHint", jsonvalue.NumberFromFloat(float64(len(v.String))))
	}
	if depth > 0 && v.IsContainer() {
		out.Set("sample", summarize(v, depth, sampleSize))
	} else {
		out.Set("sample", sampleLeaf(v))
	}
	return jsonvalue.Obj(out)
}

// sampleLeaf reduces a value to a payload-free sample: strings are cut to
// the sample length and containers are reduced to a type descriptor, so a
// depth cutoff never embeds a full nested subtree in the summary.
func sampleLeaf(v jsonvalue.Value) jsonvalue.Value {
	switch v.Kind {
	case jsonvalue.KindString:
		return jsonvalue.String(firstNChars(v.String, sampleStringChars))
	case jsonvalue.KindObject:
		return jsonvalue.String(fmt.Sprintf("object(%d keys)", v.Object.Len()))
	case jsonvalue.KindArray:
		return jsonvalue.String(fmt.Sprintf("array(%d elements)", len(v.Array)))
	default:
		return v
	}
}

func elementTypeHistogram(elems []jsonvalue.Value) jsonvalue.Value {
	counts := jsonvalue.NewOrderedMap()
	order := make([]string, 0, 6)
	seen := make(map[string]bool)
	for _, e := range elems {
		k := e.Kind.String()
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
	}
	for _, k := range order {
		var n int
		for _, e := range elems {
			if e.Kind.String() == k {
				n++
			}
		}
		counts.Set(k, jsonvalue.NumberFromFloat(float64(n)))
	}
	return jsonvalue.Obj(counts)
}

func firstNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
