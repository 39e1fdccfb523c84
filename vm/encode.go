package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// EncodeNode renders a node in the compiled story encoding. Diverts and
// choice points are written with their linked, absolute targets.
func EncodeNode(n Node) ([]byte, error) {
	w, err := wireOf(n, false)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// EncodeNodeIndent is EncodeNode with indented output.
func EncodeNodeIndent(n Node, indent string) ([]byte, error) {
	w, err := wireOf(n, false)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(w, "", indent)
}

// wireOf converts a node to its JSON shape. named is set for containers
// held in a named table, whose name is implied by the key.
func wireOf(n Node, named bool) (any, error) {
	switch v := n.(type) {
	case *Container:
		return wireContainer(v, named)
	case ControlCommand:
		return v.Token(), nil
	case *NativeFunctionCall:
		return v.Name, nil
	case Glue:
		return "<>", nil
	case Void:
		return "void", nil
	case *Tag:
		return map[string]any{"#": v.Text}, nil
	case *Divert:
		return wireDivert(v), nil
	case *ChoicePoint:
		return map[string]any{"*": v.PathOnChoice.String(), "flg": int(v.Flags)}, nil
	case *VariableReference:
		if v.IsCount {
			return map[string]any{"CNT?": v.CountPath.String()}, nil
		}
		return map[string]any{"VAR?": v.Name}, nil
	case *VariableAssignment:
		key := "temp="
		if v.IsGlobal {
			key = "VAR="
		}
		m := map[string]any{key: v.Name}
		if !v.IsNewDeclaration {
			m["re"] = true
		}
		return m, nil
	case Value:
		return wireValue(v), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %s", ErrMalformedNode, n.Kind())
}

func wireContainer(c *Container, named bool) (any, error) {
	arr := make([]any, 0, len(c.Content)+1)
	for _, child := range c.Content {
		w, err := wireOf(child, false)
		if err != nil {
			return nil, err
		}
		arr = append(arr, w)
	}

	meta := make(map[string]any)
	for _, name := range sortedNames(c.NamedContent) {
		w, err := wireOf(c.NamedContent[name], true)
		if err != nil {
			return nil, err
		}
		meta[name] = w
	}
	if f := c.CountFlags(); f != 0 {
		meta["#f"] = int(f)
	}
	if c.Name != "" && !named {
		meta["#n"] = c.Name
	}

	if len(meta) == 0 {
		return append(arr, nil), nil
	}
	return append(arr, meta), nil
}

func wireDivert(d *Divert) map[string]any {
	key := "->"
	switch {
	case d.IsExternal:
		key = "x()"
	case d.PushesToStack && d.StackPushType == FrameFunction:
		key = "f()"
	case d.PushesToStack && d.StackPushType == FrameTunnel:
		key = "->t->"
	}

	m := make(map[string]any)
	if d.HasVariableTarget() {
		m[key] = d.VariableTarget
		m["var"] = true
	} else {
		m[key] = d.Target.String()
	}
	if d.IsExternal {
		m["exArgs"] = d.ExternalArgs
	}
	if d.IsConditional {
		m["c"] = true
	}
	return m
}

func wireValue(v Value) any {
	switch x := v.(type) {
	case IntValue:
		return int(x)
	case FloatValue:
		s := strconv.FormatFloat(float64(x), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return json.Number(s)
	case BoolValue:
		return bool(x)
	case StringValue:
		if x == "\n" {
			return "\n"
		}
		return "^" + string(x)
	case DivertTargetValue:
		return map[string]any{"^->": x.Target.String()}
	case VariablePointerValue:
		return map[string]any{"^var": x.Name, "ci": x.Context}
	case ListValue:
		items := make(map[string]any, x.List.Len())
		for _, e := range x.List.Entries() {
			items[e.Item.FullName()] = e.Value
		}
		m := map[string]any{"list": items}
		if x.List.Len() == 0 {
			if origins := x.List.OriginNames(); len(origins) > 0 {
				m["origins"] = origins
			}
		}
		return m
	}
	return nil
}
