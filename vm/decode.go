package vm

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/chazu/quill/pkg/inkpath"
)

// Supported range of the top-level "inkVersion" field.
const (
	MinInkVersion = 19
	MaxInkVersion = 21
)

// ---------------------------------------------------------------------------
// Story documents
// ---------------------------------------------------------------------------

// LoadStory decodes a compiled story document and links it into a Story.
func LoadStory(r io.Reader) (*Story, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read story: %w", err)
	}
	return ParseStory(data)
}

// ParseStory decodes a compiled story document held in memory.
func ParseStory(data []byte) (*Story, error) {
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, &FormatError{Err: ErrMalformedNode, Hint: err.Error()}
	}
	top, ok := doc.(map[string]any)
	if !ok {
		return nil, &FormatError{Err: ErrMalformedNode, Hint: "story document must be an object"}
	}

	version, err := intField(top, "inkVersion")
	if err != nil {
		return nil, &FormatError{Path: "inkVersion", Err: ErrMalformedNode, Hint: err.Error()}
	}
	if version < MinInkVersion || version > MaxInkVersion {
		return nil, &FormatError{
			Path: "inkVersion",
			Err:  ErrUnsupportedVersion,
			Hint: fmt.Sprintf("got %d, support %d-%d", version, MinInkVersion, MaxInkVersion),
		}
	}

	rootRaw, ok := top["root"]
	if !ok {
		return nil, &FormatError{Path: "root", Err: ErrMalformedNode, Hint: "missing root"}
	}
	rootArr, ok := rootRaw.([]any)
	if !ok {
		return nil, &FormatError{Path: "root", Err: ErrMalformedNode, Hint: "root must be an array"}
	}
	root, err := decodeContainer(rootArr, "root")
	if err != nil {
		return nil, err
	}

	lists, err := decodeListDefs(top["listDefs"])
	if err != nil {
		return nil, err
	}

	s := NewStory(root, lists)
	s.Version = version
	s.fingerprint = fingerprint(data)
	return s, nil
}

// DecodeContainer decodes one container in the array encoding.
func DecodeContainer(data []byte) (*Container, error) {
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, &FormatError{Err: ErrMalformedNode, Hint: err.Error()}
	}
	arr, ok := doc.([]any)
	if !ok {
		return nil, &FormatError{Err: ErrMalformedNode, Hint: "container must be an array"}
	}
	return decodeContainer(arr, "")
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

func childPath(parent, elem string) string {
	if parent == "" {
		return elem
	}
	return parent + "." + elem
}

// decodeContainer applies the trailing-element rule: the last element is
// null or a metadata object, everything before it is content.
func decodeContainer(arr []any, at string) (*Container, error) {
	if len(arr) == 0 {
		return nil, &FormatError{Path: at, Err: ErrNoElements}
	}
	c := NewContainer()

	last := len(arr) - 1
	for i, raw := range arr[:last] {
		elemAt := childPath(at, strconv.Itoa(i))
		switch v := raw.(type) {
		case nil:
			return nil, &FormatError{Path: elemAt, Err: ErrUnexpectedNull}
		case map[string]any:
			if !isNodeObject(v) {
				return nil, &FormatError{Path: elemAt, Err: ErrUnexpectedMetadata}
			}
		}
		n, err := decodeNode(raw, elemAt)
		if err != nil {
			return nil, err
		}
		c.AddContent(n)
	}

	switch meta := arr[last].(type) {
	case nil:
		return c, nil
	case map[string]any:
		if isNodeObject(meta) {
			return nil, &FormatError{Path: childPath(at, strconv.Itoa(last)), Err: ErrUnexpectedNode}
		}
		if err := applyMetadata(c, meta, at); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &FormatError{Path: childPath(at, strconv.Itoa(last)), Err: ErrUnexpectedNode}
	}
}

func applyMetadata(c *Container, meta map[string]any, at string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := meta[k]
		switch k {
		case "#n":
			name, ok := raw.(string)
			if !ok {
				return &FormatError{Path: childPath(at, k), Err: ErrMalformedNode, Hint: "name must be a string"}
			}
			c.Name = name
		case "#f":
			n, err := asInt(raw)
			if err != nil || n < 0 || n > 0xff {
				return &FormatError{Path: childPath(at, k), Err: ErrMalformedNode, Hint: "flags must be a small integer"}
			}
			c.SetCountFlags(CountFlags(n))
		default:
			arr, ok := raw.([]any)
			if !ok {
				return &FormatError{Path: childPath(at, k), Err: ErrMalformedNode, Hint: "named element must be a container"}
			}
			child, err := decodeContainer(arr, childPath(at, k))
			if err != nil {
				return err
			}
			c.AddNamed(k, child)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Content nodes
// ---------------------------------------------------------------------------

// nodeObjectKeys are the keys that mark an object as a content node rather
// than container metadata. Metadata may use the same words as names of
// child containers, but those always map to arrays.
var nodeObjectKeys = []string{
	"^->", "^var", "->", "f()", "->t->", "x()", "*", "VAR?", "CNT?", "VAR=", "temp=", "#", "list",
}

func isNodeObject(m map[string]any) bool {
	for _, k := range nodeObjectKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if _, isContainer := v.([]any); !isContainer {
			return true
		}
	}
	return false
}

func decodeNode(raw any, at string) (Node, error) {
	switch v := raw.(type) {
	case []any:
		return decodeContainer(v, at)
	case string:
		return decodeToken(v, at)
	case json.Number:
		return decodeNumber(v, at)
	case bool:
		return BoolValue(v), nil
	case map[string]any:
		return decodeObject(v, at)
	case nil:
		return nil, &FormatError{Path: at, Err: ErrUnexpectedNull}
	}
	return nil, &FormatError{Path: at, Err: ErrMalformedNode, Hint: fmt.Sprintf("unexpected %T", raw)}
}

func decodeToken(s, at string) (Node, error) {
	switch {
	case strings.HasPrefix(s, "^"):
		return StringValue(s[1:]), nil
	case s == "\n":
		return StringValue("\n"), nil
	case s == "<>":
		return Glue{}, nil
	case s == "void":
		return Void{}, nil
	}
	if cmd, ok := CommandForToken(s); ok {
		return cmd, nil
	}
	if call, ok := NewNativeFunctionCall(s); ok {
		return call, nil
	}
	return nil, &FormatError{Path: at, Err: ErrMalformedNode, Hint: fmt.Sprintf("unknown token %q", s)}
}

func decodeNumber(n json.Number, at string) (Node, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, &FormatError{Path: at, Err: ErrMalformedNode, Hint: err.Error()}
		}
		return FloatValue(f), nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil, &FormatError{Path: at, Err: ErrMalformedNode, Hint: err.Error()}
	}
	return IntValue(i), nil
}

func decodeObject(m map[string]any, at string) (Node, error) {
	bad := func(hint string) error {
		return &FormatError{Path: at, Err: ErrMalformedNode, Hint: hint}
	}

	if raw, ok := m["^->"]; ok {
		p, err := pathField(raw)
		if err != nil {
			return nil, bad("divert target: " + err.Error())
		}
		return DivertTargetValue{Target: p}, nil
	}

	if raw, ok := m["^var"]; ok {
		name, ok := raw.(string)
		if !ok {
			return nil, bad("variable pointer name must be a string")
		}
		ctx := -1
		if ci, ok := m["ci"]; ok {
			n, err := asInt(ci)
			if err != nil {
				return nil, bad("ci: " + err.Error())
			}
			ctx = n
		}
		return VariablePointerValue{Name: name, Context: ctx}, nil
	}

	for _, key := range []string{"->", "f()", "->t->", "x()"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		target, ok := raw.(string)
		if !ok {
			return nil, bad(key + " target must be a string")
		}
		d := &Divert{}
		switch key {
		case "f()":
			d.PushesToStack, d.StackPushType = true, FrameFunction
		case "->t->":
			d.PushesToStack, d.StackPushType = true, FrameTunnel
		case "x()":
			d.IsExternal = true
			if n, ok := m["exArgs"]; ok {
				args, err := asInt(n)
				if err != nil {
					return nil, bad("exArgs: " + err.Error())
				}
				d.ExternalArgs = args
			}
		}
		if v, ok := m["var"].(bool); ok && v {
			d.VariableTarget = target
		} else if d.IsExternal {
			d.Target = inkpath.New(false, inkpath.Name(target))
		} else {
			p, err := inkpath.Parse(target)
			if err != nil {
				return nil, bad("divert target: " + err.Error())
			}
			d.Target = p
		}
		if c, ok := m["c"].(bool); ok {
			d.IsConditional = c
		}
		return d, nil
	}

	if raw, ok := m["*"]; ok {
		p, err := pathField(raw)
		if err != nil {
			return nil, bad("choice path: " + err.Error())
		}
		cp := &ChoicePoint{PathOnChoice: p}
		if flg, ok := m["flg"]; ok {
			n, err := asInt(flg)
			if err != nil {
				return nil, bad("flg: " + err.Error())
			}
			cp.Flags = ChoiceFlags(n)
		}
		return cp, nil
	}

	if raw, ok := m["VAR?"]; ok {
		name, ok := raw.(string)
		if !ok {
			return nil, bad("VAR? must be a string")
		}
		return &VariableReference{Name: name}, nil
	}

	if raw, ok := m["CNT?"]; ok {
		p, err := pathField(raw)
		if err != nil {
			return nil, bad("CNT?: " + err.Error())
		}
		return &VariableReference{CountPath: p, IsCount: true}, nil
	}

	for _, key := range []string{"VAR=", "temp="} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		name, ok := raw.(string)
		if !ok {
			return nil, bad(key + " must be a string")
		}
		re, _ := m["re"].(bool)
		return &VariableAssignment{
			Name:             name,
			IsGlobal:         key == "VAR=",
			IsNewDeclaration: !re,
		}, nil
	}

	if raw, ok := m["#"]; ok {
		text, ok := raw.(string)
		if !ok {
			return nil, bad("tag text must be a string")
		}
		return &Tag{Text: text}, nil
	}

	if raw, ok := m["list"]; ok {
		items, ok := raw.(map[string]any)
		if !ok {
			return nil, bad("list must be an object")
		}
		var entries []ListEntry
		for full, v := range items {
			n, err := asInt(v)
			if err != nil {
				return nil, bad("list item " + full + ": " + err.Error())
			}
			entries = append(entries, ListEntry{Item: ParseListItem(full), Value: n})
		}
		l := NewInkList(entries...)
		if rawOrigins, ok := m["origins"].([]any); ok {
			var names []string
			for _, o := range rawOrigins {
				if s, ok := o.(string); ok {
					names = append(names, s)
				}
			}
			l = l.WithOrigins(names...)
		}
		return ListValue{List: l}, nil
	}

	return nil, &FormatError{Path: at, Err: ErrUnexpectedMetadata}
}

// ---------------------------------------------------------------------------
// List definitions
// ---------------------------------------------------------------------------

func decodeListDefs(raw any) (*ListDefinitions, error) {
	if raw == nil {
		return NewListDefinitions(), nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &FormatError{Path: "listDefs", Err: ErrMalformedNode, Hint: "listDefs must be an object"}
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var defs []*ListDefinition
	for _, name := range names {
		itemsRaw, ok := m[name].(map[string]any)
		if !ok {
			return nil, &FormatError{Path: childPath("listDefs", name), Err: ErrMalformedNode, Hint: "list definition must be an object"}
		}
		items := make(map[string]int, len(itemsRaw))
		for item, v := range itemsRaw {
			n, err := asInt(v)
			if err != nil {
				return nil, &FormatError{Path: childPath(childPath("listDefs", name), item), Err: ErrMalformedNode, Hint: err.Error()}
			}
			items[item] = n
		}
		defs = append(defs, NewListDefinition(name, items))
	}
	return NewListDefinitions(defs...), nil
}

// ---------------------------------------------------------------------------
// Field helpers
// ---------------------------------------------------------------------------

func asInt(raw any) (int, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return int(i), nil
}

func intField(m map[string]any, key string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	return asInt(raw)
}

func pathField(raw any) (inkpath.Path, error) {
	s, ok := raw.(string)
	if !ok {
		return inkpath.Path{}, fmt.Errorf("path must be a string, got %T", raw)
	}
	return inkpath.Parse(s)
}
