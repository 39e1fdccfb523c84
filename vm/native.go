package vm

import (
	"fmt"
	"math"
	"strings"
)

// NativeFunctionCall applies a built-in operator to values popped from the
// evaluation stack.
type NativeFunctionCall struct {
	Name  string
	arity int
}

// nativeArity lists every built-in operator and how many operands it takes.
var nativeArity = map[string]int{
	// Arithmetic
	"+": 2, "-": 2, "*": 2, "/": 2, "%": 2, "_": 1,

	// Comparison
	"==": 2, "!=": 2, ">": 2, "<": 2, ">=": 2, "<=": 2,

	// Logic
	"!": 1, "&&": 2, "||": 2,

	// Math
	"MIN": 2, "MAX": 2, "POW": 2, "FLOOR": 1, "CEILING": 1, "INT": 1, "FLOAT": 1,

	// Membership
	"?": 2, "!?": 2, "L^": 2,

	// Lists
	"LIST_MIN": 1, "LIST_MAX": 1, "LIST_ALL": 1, "LIST_COUNT": 1, "LIST_VALUE": 1, "LIST_INVERT": 1,
}

// NewNativeFunctionCall returns the call for an operator name.
func NewNativeFunctionCall(name string) (*NativeFunctionCall, bool) {
	n, ok := nativeArity[name]
	if !ok {
		return nil, false
	}
	return &NativeFunctionCall{Name: name, arity: n}, true
}

// IsNativeFunction reports whether name is a built-in operator.
func IsNativeFunction(name string) bool {
	_, ok := nativeArity[name]
	return ok
}

func (*NativeFunctionCall) node()          {}
func (*NativeFunctionCall) Kind() NodeKind { return KindNativeFunctionCall }

// Arity returns the number of operands.
func (f *NativeFunctionCall) Arity() int { return f.arity }

// Call applies the operator. args are in push order: args[0] was pushed
// first. defs is needed by the list operators.
func (f *NativeFunctionCall) Call(defs *ListDefinitions, args []Value) (Value, error) {
	if len(args) != f.arity {
		return nil, fmt.Errorf("%w: %s expects %d operands, got %d", ErrEvalStackUnderflow, f.Name, f.arity, len(args))
	}
	hasList := false
	for _, a := range args {
		if a == nil {
			return nil, fmt.Errorf("%w: operand of %s is void", ErrInvalidValue, f.Name)
		}
		if a.Type() == TypeList {
			hasList = true
		}
	}
	if len(args) == 2 && hasList {
		return f.callBinaryList(defs, args)
	}
	coerced, err := coerce(defs, args)
	if err != nil {
		return nil, err
	}
	switch coerced[0].Type() {
	case TypeInt:
		return f.callInt(coerced)
	case TypeFloat:
		return f.callFloat(coerced)
	case TypeString:
		return f.callString(coerced)
	case TypeDivertTarget:
		return f.callDivertTarget(coerced)
	case TypeList:
		return f.callList(defs, coerced)
	}
	return nil, f.unsupported(coerced[0].Type())
}

func (f *NativeFunctionCall) unsupported(t ValueType) error {
	return fmt.Errorf("%w: cannot perform %s on %s", ErrTypeMismatch, f.Name, t)
}

// coerce casts every operand to the highest-ranked operand type. Coercion
// starts at Int, so booleans always become integers.
func coerce(defs *ListDefinitions, args []Value) ([]Value, error) {
	target := TypeInt
	var special *ListValue
	for _, a := range args {
		if a.Type() > target {
			target = a.Type()
		}
		if lv, ok := a.(ListValue); ok {
			special = &lv
		}
	}
	out := make([]Value, len(args))
	if target == TypeList {
		for i, a := range args {
			switch v := a.(type) {
			case ListValue:
				out[i] = v
			case IntValue:
				lv, err := intToList(defs, special.List, int(v))
				if err != nil {
					return nil, err
				}
				out[i] = lv
			default:
				return nil, fmt.Errorf("%w: cannot mix lists and %s values", ErrTypeMismatch, a.Type())
			}
		}
		return out, nil
	}
	for i, a := range args {
		c, err := Cast(a, target)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// intToList maps an integer to the item with that value in the definition
// of like's highest item.
func intToList(defs *ListDefinitions, like InkList, n int) (ListValue, error) {
	item, _, ok := like.Max()
	if !ok {
		return ListValue{}, fmt.Errorf("%w: cannot convert %d to an item of an empty list", ErrTypeMismatch, n)
	}
	d, ok := defs.Lookup(item.Origin)
	if !ok {
		return ListValue{}, fmt.Errorf("%w: list %q is not defined", ErrTypeMismatch, item.Origin)
	}
	found, ok := d.ItemWithValue(n)
	if !ok {
		return ListValue{}, fmt.Errorf("%w: no item with value %d in %s", ErrTypeMismatch, n, d.Name())
	}
	return ListValue{List: NewInkList(ListEntry{Item: found, Value: n})}, nil
}

// ---------------------------------------------------------------------------
// Per-type operators
// ---------------------------------------------------------------------------

func (f *NativeFunctionCall) callInt(args []Value) (Value, error) {
	x := int(args[0].(IntValue))
	if f.arity == 1 {
		switch f.Name {
		case "_":
			return IntValue(-x), nil
		case "!":
			return BoolValue(x == 0), nil
		case "FLOOR", "CEILING", "INT":
			return IntValue(x), nil
		case "FLOAT":
			return FloatValue(x), nil
		}
		return nil, f.unsupported(TypeInt)
	}
	y := int(args[1].(IntValue))
	switch f.Name {
	case "+":
		return IntValue(x + y), nil
	case "-":
		return IntValue(x - y), nil
	case "*":
		return IntValue(x * y), nil
	case "/":
		if y == 0 {
			return nil, ErrDivideByZero
		}
		return IntValue(x / y), nil
	case "%":
		if y == 0 {
			return nil, ErrDivideByZero
		}
		return IntValue(x % y), nil
	case "==":
		return BoolValue(x == y), nil
	case "!=":
		return BoolValue(x != y), nil
	case ">":
		return BoolValue(x > y), nil
	case "<":
		return BoolValue(x < y), nil
	case ">=":
		return BoolValue(x >= y), nil
	case "<=":
		return BoolValue(x <= y), nil
	case "&&":
		return BoolValue(x != 0 && y != 0), nil
	case "||":
		return BoolValue(x != 0 || y != 0), nil
	case "MIN":
		return IntValue(min(x, y)), nil
	case "MAX":
		return IntValue(max(x, y)), nil
	case "POW":
		return FloatValue(math.Pow(float64(x), float64(y))), nil
	}
	return nil, f.unsupported(TypeInt)
}

func (f *NativeFunctionCall) callFloat(args []Value) (Value, error) {
	x := float64(args[0].(FloatValue))
	if f.arity == 1 {
		switch f.Name {
		case "_":
			return FloatValue(-x), nil
		case "!":
			return BoolValue(x == 0), nil
		case "FLOOR":
			return FloatValue(math.Floor(x)), nil
		case "CEILING":
			return FloatValue(math.Ceil(x)), nil
		case "INT":
			return IntValue(int(math.Trunc(x))), nil
		case "FLOAT":
			return FloatValue(x), nil
		}
		return nil, f.unsupported(TypeFloat)
	}
	y := float64(args[1].(FloatValue))
	switch f.Name {
	case "+":
		return FloatValue(x + y), nil
	case "-":
		return FloatValue(x - y), nil
	case "*":
		return FloatValue(x * y), nil
	case "/":
		return FloatValue(x / y), nil
	case "%":
		return FloatValue(math.Mod(x, y)), nil
	case "==":
		return BoolValue(x == y), nil
	case "!=":
		return BoolValue(x != y), nil
	case ">":
		return BoolValue(x > y), nil
	case "<":
		return BoolValue(x < y), nil
	case ">=":
		return BoolValue(x >= y), nil
	case "<=":
		return BoolValue(x <= y), nil
	case "&&":
		return BoolValue(x != 0 && y != 0), nil
	case "||":
		return BoolValue(x != 0 || y != 0), nil
	case "MIN":
		return FloatValue(math.Min(x, y)), nil
	case "MAX":
		return FloatValue(math.Max(x, y)), nil
	case "POW":
		return FloatValue(math.Pow(x, y)), nil
	}
	return nil, f.unsupported(TypeFloat)
}

func (f *NativeFunctionCall) callString(args []Value) (Value, error) {
	if f.arity != 2 {
		return nil, f.unsupported(TypeString)
	}
	x, y := string(args[0].(StringValue)), string(args[1].(StringValue))
	switch f.Name {
	case "+":
		return StringValue(x + y), nil
	case "==":
		return BoolValue(x == y), nil
	case "!=":
		return BoolValue(x != y), nil
	case "?":
		return BoolValue(strings.Contains(x, y)), nil
	case "!?":
		return BoolValue(!strings.Contains(x, y)), nil
	}
	return nil, f.unsupported(TypeString)
}

func (f *NativeFunctionCall) callDivertTarget(args []Value) (Value, error) {
	if f.arity != 2 {
		return nil, f.unsupported(TypeDivertTarget)
	}
	x, y := args[0].(DivertTargetValue), args[1].(DivertTargetValue)
	switch f.Name {
	case "==":
		return BoolValue(x.Target.Equal(y.Target)), nil
	case "!=":
		return BoolValue(!x.Target.Equal(y.Target)), nil
	}
	return nil, f.unsupported(TypeDivertTarget)
}

func (f *NativeFunctionCall) callList(defs *ListDefinitions, args []Value) (Value, error) {
	x := args[0].(ListValue).List
	if f.arity == 1 {
		switch f.Name {
		case "!":
			if x.Len() == 0 {
				return IntValue(1), nil
			}
			return IntValue(0), nil
		case "LIST_MIN":
			return ListValue{List: x.MinAsList()}, nil
		case "LIST_MAX":
			return ListValue{List: x.MaxAsList()}, nil
		case "LIST_ALL":
			return ListValue{List: x.All(defs)}, nil
		case "LIST_INVERT":
			return ListValue{List: x.Inverse(defs)}, nil
		case "LIST_COUNT":
			return IntValue(x.Len()), nil
		case "LIST_VALUE":
			_, v, _ := x.Max()
			return IntValue(v), nil
		}
		return nil, f.unsupported(TypeList)
	}
	y := args[1].(ListValue).List
	switch f.Name {
	case "+":
		return ListValue{List: x.Union(y)}, nil
	case "-":
		return ListValue{List: x.Without(y)}, nil
	case "?":
		return BoolValue(x.Contains(y)), nil
	case "!?":
		return BoolValue(!x.Contains(y)), nil
	case "L^":
		return ListValue{List: x.Intersect(y)}, nil
	case "==":
		return BoolValue(x.Equal(y)), nil
	case "!=":
		return BoolValue(!x.Equal(y)), nil
	case ">":
		return BoolValue(x.GreaterThan(y)), nil
	case "<":
		return BoolValue(x.LessThan(y)), nil
	case ">=":
		return BoolValue(x.GreaterThanOrEquals(y)), nil
	case "<=":
		return BoolValue(x.LessThanOrEquals(y)), nil
	case "&&":
		return BoolValue(x.Len() > 0 && y.Len() > 0), nil
	case "||":
		return BoolValue(x.Len() > 0 || y.Len() > 0), nil
	}
	return nil, f.unsupported(TypeList)
}

// callBinaryList handles a two-operand call where at least one operand is
// a list.
func (f *NativeFunctionCall) callBinaryList(defs *ListDefinitions, args []Value) (Value, error) {
	lv, isList := args[0].(ListValue)
	n, isInt := args[1].(IntValue)
	if (f.Name == "+" || f.Name == "-") && isList && isInt {
		return f.incrementList(defs, lv.List, int(n))
	}
	if (f.Name == "&&" || f.Name == "||") && (args[0].Type() != TypeList || args[1].Type() != TypeList) {
		a, err := IsTruthy(args[0])
		if err != nil {
			return nil, err
		}
		b, err := IsTruthy(args[1])
		if err != nil {
			return nil, err
		}
		if f.Name == "&&" {
			return BoolValue(a && b), nil
		}
		return BoolValue(a || b), nil
	}
	if args[0].Type() == TypeList && args[1].Type() == TypeList {
		return f.callList(defs, args)
	}
	return nil, fmt.Errorf("%w: cannot perform %s on %s and %s", ErrTypeMismatch, f.Name, args[0].Type(), args[1].Type())
}

// incrementList moves every item of l by delta within its own definition.
// Items that would fall outside the definition are dropped.
func (f *NativeFunctionCall) incrementList(defs *ListDefinitions, l InkList, delta int) (Value, error) {
	if f.Name == "-" {
		delta = -delta
	}
	out := NewInkList()
	for _, e := range l.Entries() {
		d, ok := defs.Lookup(e.Item.Origin)
		if !ok {
			continue
		}
		if item, ok := d.ItemWithValue(e.Value + delta); ok {
			out.items[item] = e.Value + delta
		}
	}
	return ListValue{List: out}, nil
}
