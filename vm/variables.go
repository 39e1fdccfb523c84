package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func (st *state) globalExists(name string) bool {
	if _, ok := st.globals[name]; ok {
		return true
	}
	_, ok := st.defaultGlobals[name]
	return ok
}

// rawVariable looks a variable up without following pointers. Context 0
// and -1 consult globals first, then list items by name; -1 and frame
// contexts then fall back to the frame's temporaries.
func (st *state) rawVariable(name string, ctx int, lists *ListDefinitions) (Value, bool) {
	if ctx == 0 || ctx == -1 {
		if v, ok := st.globals[name]; ok {
			return v, true
		}
		if v, ok := st.defaultGlobals[name]; ok {
			return v, true
		}
		if e, ok := lists.FindItem(name); ok {
			return ListValue{List: NewInkList(e)}, true
		}
		if ctx == 0 {
			return nil, false
		}
	}
	return st.callStack.Temp(name, ctx)
}

// variable looks a variable up, dereferencing a pointer if it finds one.
func (st *state) variable(name string, ctx int, lists *ListDefinitions) (Value, bool) {
	v, ok := st.rawVariable(name, ctx, lists)
	if !ok {
		return nil, false
	}
	if ptr, isPtr := v.(VariablePointerValue); isPtr {
		return st.variable(ptr.Name, ptr.Context, lists)
	}
	return v, true
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// assign stores v according to a variable assignment node. Reassigning a
// name that holds a pointer writes through to the variable pointed at.
func (st *state) assign(va *VariableAssignment, v Value, lists *ListDefinitions) error {
	name := va.Name
	ctx := -1

	var setGlobal bool
	if va.IsNewDeclaration {
		setGlobal = va.IsGlobal
	} else {
		setGlobal = st.globalExists(name)
	}

	if va.IsNewDeclaration {
		if ptr, ok := v.(VariablePointerValue); ok {
			v = st.resolveVariablePointer(ptr, lists)
		}
	} else {
		for {
			raw, ok := st.rawVariable(name, ctx, lists)
			ptr, isPtr := raw.(VariablePointerValue)
			if !ok || !isPtr {
				break
			}
			name, ctx = ptr.Name, ptr.Context
			setGlobal = ctx == 0
		}
	}

	if setGlobal {
		st.setGlobal(name, v)
		return nil
	}
	return st.callStack.SetTemp(name, v, va.IsNewDeclaration, ctx)
}

func (st *state) setGlobal(name string, v Value) {
	if old, ok := st.globals[name]; ok {
		v = retainListOrigins(old, v)
	}
	st.globals[name] = v
}

// resolveVariablePointer fixes the context of a pointer that is being
// stored. A pointer to a pointer collapses to the final target.
func (st *state) resolveVariablePointer(ptr VariablePointerValue, lists *ListDefinitions) VariablePointerValue {
	ctx := ptr.Context
	if ctx == -1 {
		if st.globalExists(ptr.Name) {
			ctx = 0
		} else {
			// The pointer was made in the caller's frame, which is one
			// below the frame now being declared into.
			ctx = st.callStack.CurrentIndex()
		}
	}
	if raw, ok := st.rawVariable(ptr.Name, ctx, lists); ok {
		if inner, isPtr := raw.(VariablePointerValue); isPtr {
			return inner
		}
	}
	return VariablePointerValue{Name: ptr.Name, Context: ctx}
}

// retainListOrigins keeps an empty list assigned over a list aware of the
// definitions the old value came from.
func retainListOrigins(old, v Value) Value {
	oldList, ok := old.(ListValue)
	if !ok {
		return v
	}
	newList, ok := v.(ListValue)
	if !ok || newList.List.Len() != 0 {
		return v
	}
	return ListValue{List: newList.List.WithOrigins(oldList.List.OriginNames()...)}
}

// ---------------------------------------------------------------------------
// Host access
// ---------------------------------------------------------------------------

// Variable returns the current value of a global variable.
func (s *Session) Variable(name string) (Value, bool) {
	return s.st.variable(name, 0, s.story.Lists)
}

// SetVariable assigns a global declared by the story. The value type is
// not checked against the declaration.
func (s *Session) SetVariable(name string, v Value) error {
	if !s.st.globalExists(name) {
		return fmt.Errorf("%w: %q", ErrVariableUndeclared, name)
	}
	if v == nil {
		return fmt.Errorf("%w: nil value for %q", ErrInvalidValue, name)
	}
	s.st.setGlobal(name, v)
	return nil
}

// GlobalNames returns the names of every declared global.
func (s *Session) GlobalNames() []string {
	seen := make(map[string]bool)
	var names []string
	for k := range s.st.defaultGlobals {
		seen[k] = true
		names = append(names, k)
	}
	for k := range s.st.globals {
		if !seen[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
