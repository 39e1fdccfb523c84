package vm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/quill/pkg/inkpath"
)

// ---------------------------------------------------------------------------
// Value types
// ---------------------------------------------------------------------------

// ValueType orders the value variants for binary-operation coercion: both
// operands are cast to the higher of the two types. Bool ranks below Int so
// that boolean operands are coerced to integers.
type ValueType int8

const (
	TypeBool            ValueType = -1
	TypeInt             ValueType = 0
	TypeFloat           ValueType = 1
	TypeList            ValueType = 2
	TypeString          ValueType = 3
	TypeDivertTarget    ValueType = 4
	TypeVariablePointer ValueType = 5
)

func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeList:
		return "List"
	case TypeString:
		return "String"
	case TypeDivertTarget:
		return "DivertTarget"
	case TypeVariablePointer:
		return "VariablePointer"
	default:
		return fmt.Sprintf("ValueType(%d)", t)
	}
}

// Value is a typed literal that can live on the evaluation stack, in a
// variable or in the output stream.
type Value interface {
	Node
	Type() ValueType
	String() string
}

// IntValue is a whole number.
type IntValue int

// FloatValue is a floating-point number.
type FloatValue float64

// BoolValue is a boolean.
type BoolValue bool

// StringValue is a piece of text.
type StringValue string

// ListValue wraps a set of list items.
type ListValue struct {
	List InkList
}

// DivertTargetValue holds a path that can be diverted to or counted.
type DivertTargetValue struct {
	Target inkpath.Path
}

// VariablePointerValue refers to a variable by name, for passing by
// reference. Context 0 is the global scope, n > 0 is the n-th call frame
// (1-based) and -1 means not yet resolved.
type VariablePointerValue struct {
	Name    string
	Context int
}

func (IntValue) node()             {}
func (FloatValue) node()           {}
func (BoolValue) node()            {}
func (StringValue) node()          {}
func (ListValue) node()            {}
func (DivertTargetValue) node()    {}
func (VariablePointerValue) node() {}

func (IntValue) Kind() NodeKind             { return KindValue }
func (FloatValue) Kind() NodeKind           { return KindValue }
func (BoolValue) Kind() NodeKind            { return KindValue }
func (StringValue) Kind() NodeKind          { return KindValue }
func (ListValue) Kind() NodeKind            { return KindValue }
func (DivertTargetValue) Kind() NodeKind    { return KindValue }
func (VariablePointerValue) Kind() NodeKind { return KindValue }

func (IntValue) Type() ValueType             { return TypeInt }
func (FloatValue) Type() ValueType           { return TypeFloat }
func (BoolValue) Type() ValueType            { return TypeBool }
func (StringValue) Type() ValueType          { return TypeString }
func (ListValue) Type() ValueType            { return TypeList }
func (DivertTargetValue) Type() ValueType    { return TypeDivertTarget }
func (VariablePointerValue) Type() ValueType { return TypeVariablePointer }

func (v IntValue) String() string { return strconv.Itoa(int(v)) }

// String renders floats with the shortest single-precision form, so 2/3.0
// prints as 0.6666667 and 1.0 prints as 1.
func (v FloatValue) String() string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func (v BoolValue) String() string {
	if v {
		return "true"
	}
	return "false"
}

func (v StringValue) String() string          { return string(v) }
func (v ListValue) String() string            { return v.List.String() }
func (v DivertTargetValue) String() string    { return "DivertTargetValue(" + v.Target.String() + ")" }
func (v VariablePointerValue) String() string { return "VariablePointerValue(" + v.Name + ")" }

// ---------------------------------------------------------------------------
// String classification (used by output normalisation)
// ---------------------------------------------------------------------------

func (v StringValue) isNewline() bool { return v == "\n" }

func (v StringValue) isInlineWhitespace() bool {
	for i := 0; i < len(v); i++ {
		if v[i] != ' ' && v[i] != '\t' {
			return false
		}
	}
	return true
}

func (v StringValue) isNonWhitespace() bool {
	return !v.isNewline() && !v.isInlineWhitespace()
}

// ---------------------------------------------------------------------------
// Truthiness and casting
// ---------------------------------------------------------------------------

// IsTruthy reports the boolean meaning of a value. Divert targets and
// variable pointers have none.
func IsTruthy(v Value) (bool, error) {
	switch x := v.(type) {
	case BoolValue:
		return bool(x), nil
	case IntValue:
		return x != 0, nil
	case FloatValue:
		return x != 0, nil
	case StringValue:
		return len(x) > 0, nil
	case ListValue:
		return x.List.Len() > 0, nil
	case DivertTargetValue:
		return false, fmt.Errorf("%w: truthiness of a divert target", ErrTypeMismatch)
	case VariablePointerValue:
		return false, fmt.Errorf("%w: truthiness of a variable pointer", ErrTypeMismatch)
	}
	return false, fmt.Errorf("%w: %T", ErrInvalidValue, v)
}

// Cast converts v to type t.
func Cast(v Value, t ValueType) (Value, error) {
	if v.Type() == t {
		return v, nil
	}
	bad := func() (Value, error) {
		return nil, fmt.Errorf("%w: cannot cast %s %q to %s", ErrTypeMismatch, v.Type(), v.String(), t)
	}
	switch x := v.(type) {
	case BoolValue:
		n := 0
		if x {
			n = 1
		}
		switch t {
		case TypeInt:
			return IntValue(n), nil
		case TypeFloat:
			return FloatValue(n), nil
		case TypeString:
			return StringValue(x.String()), nil
		}
	case IntValue:
		switch t {
		case TypeBool:
			return BoolValue(x != 0), nil
		case TypeFloat:
			return FloatValue(x), nil
		case TypeString:
			return StringValue(x.String()), nil
		}
	case FloatValue:
		switch t {
		case TypeBool:
			return BoolValue(x != 0), nil
		case TypeInt:
			return IntValue(int(math.Trunc(float64(x)))), nil
		case TypeString:
			return StringValue(x.String()), nil
		}
	case ListValue:
		switch t {
		case TypeInt:
			_, n, _ := x.List.Max()
			return IntValue(n), nil
		case TypeFloat:
			_, n, _ := x.List.Max()
			return FloatValue(n), nil
		case TypeString:
			return StringValue(x.List.String()), nil
		}
	}
	return bad()
}

// ---------------------------------------------------------------------------
// Host conversion
// ---------------------------------------------------------------------------

// ValueOf converts a Go value supplied by a host into a story value.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case int:
		return IntValue(v), nil
	case int32:
		return IntValue(v), nil
	case int64:
		return IntValue(v), nil
	case float32:
		return FloatValue(v), nil
	case float64:
		return FloatValue(v), nil
	case bool:
		return BoolValue(v), nil
	case string:
		return StringValue(v), nil
	case InkList:
		return ListValue{List: v}, nil
	}
	return nil, fmt.Errorf("%w: unsupported host type %T", ErrInvalidValue, x)
}

// GoValue converts a story value into a plain Go value. Lists become their
// rendered text; divert targets and pointers become their path or name.
func GoValue(v Value) any {
	switch x := v.(type) {
	case IntValue:
		return int(x)
	case FloatValue:
		return float64(x)
	case BoolValue:
		return bool(x)
	case StringValue:
		return string(x)
	case ListValue:
		return x.List.String()
	case DivertTargetValue:
		return x.Target.String()
	case VariablePointerValue:
		return x.Name
	}
	return nil
}
