package vm

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// List items and definitions
// ---------------------------------------------------------------------------

// ListItem names one member of a list definition.
type ListItem struct {
	Origin string
	Name   string
}

// ParseListItem splits "Origin.name". A bare name has no origin.
func ParseListItem(full string) ListItem {
	if i := strings.IndexByte(full, '.'); i >= 0 {
		return ListItem{Origin: full[:i], Name: full[i+1:]}
	}
	return ListItem{Name: full}
}

// FullName renders "Origin.name", or just the name when there is no origin.
func (i ListItem) FullName() string {
	if i.Origin == "" {
		return i.Name
	}
	return i.Origin + "." + i.Name
}

// ListEntry pairs an item with its value.
type ListEntry struct {
	Item  ListItem
	Value int
}

// ListDefinition is a named enumeration declared by the story.
type ListDefinition struct {
	name    string
	items   map[string]int
	byValue map[int]string
}

// NewListDefinition builds a definition from item name to value.
func NewListDefinition(name string, items map[string]int) *ListDefinition {
	d := &ListDefinition{
		name:    name,
		items:   make(map[string]int, len(items)),
		byValue: make(map[int]string, len(items)),
	}
	for item, v := range items {
		d.items[item] = v
		if prev, ok := d.byValue[v]; !ok || item < prev {
			d.byValue[v] = item
		}
	}
	return d
}

// Name returns the definition's name.
func (d *ListDefinition) Name() string { return d.name }

// ValueOf returns the value of an item.
func (d *ListDefinition) ValueOf(item string) (int, bool) {
	v, ok := d.items[item]
	return v, ok
}

// ItemWithValue finds the item carrying value v.
func (d *ListDefinition) ItemWithValue(v int) (ListItem, bool) {
	name, ok := d.byValue[v]
	if !ok {
		return ListItem{}, false
	}
	return ListItem{Origin: d.name, Name: name}, true
}

// Entries returns every item of the definition in value order.
func (d *ListDefinition) Entries() []ListEntry {
	out := make([]ListEntry, 0, len(d.items))
	for name, v := range d.items {
		out = append(out, ListEntry{Item: ListItem{Origin: d.name, Name: name}, Value: v})
	}
	sortEntries(out)
	return out
}

// ListDefinitions is the story's set of list definitions.
type ListDefinitions struct {
	byName map[string]*ListDefinition
	names  []string
}

// NewListDefinitions indexes definitions by name.
func NewListDefinitions(defs ...*ListDefinition) *ListDefinitions {
	ld := &ListDefinitions{byName: make(map[string]*ListDefinition, len(defs))}
	for _, d := range defs {
		if _, dup := ld.byName[d.name]; !dup {
			ld.names = append(ld.names, d.name)
		}
		ld.byName[d.name] = d
	}
	sort.Strings(ld.names)
	return ld
}

// Lookup returns the definition called name.
func (ld *ListDefinitions) Lookup(name string) (*ListDefinition, bool) {
	if ld == nil {
		return nil, false
	}
	d, ok := ld.byName[name]
	return d, ok
}

// All returns the definitions sorted by name.
func (ld *ListDefinitions) All() []*ListDefinition {
	if ld == nil {
		return nil
	}
	out := make([]*ListDefinition, len(ld.names))
	for i, n := range ld.names {
		out[i] = ld.byName[n]
	}
	return out
}

// FindItem resolves "Origin.name" or a bare item name. A bare name matches
// the first definition, in name order, that contains it.
func (ld *ListDefinitions) FindItem(full string) (ListEntry, bool) {
	item := ParseListItem(full)
	if item.Origin != "" {
		d, ok := ld.Lookup(item.Origin)
		if !ok {
			return ListEntry{}, false
		}
		v, ok := d.ValueOf(item.Name)
		return ListEntry{Item: item, Value: v}, ok
	}
	for _, d := range ld.All() {
		if v, ok := d.ValueOf(item.Name); ok {
			return ListEntry{Item: ListItem{Origin: d.name, Name: item.Name}, Value: v}, true
		}
	}
	return ListEntry{}, false
}

// ---------------------------------------------------------------------------
// InkList: an immutable set of list items
// ---------------------------------------------------------------------------

// InkList is a set of items, each with its value. Operations return new
// lists and never modify their operands.
//
// An empty list still remembers the definitions it was drawn from, so that
// LIST_ALL and LIST_INVERT keep working on it.
type InkList struct {
	items   map[ListItem]int
	origins []string
}

// NewInkList builds a list from entries.
func NewInkList(entries ...ListEntry) InkList {
	l := InkList{items: make(map[ListItem]int, len(entries))}
	for _, e := range entries {
		l.items[e.Item] = e.Value
	}
	return l
}

func (l InkList) clone() InkList {
	c := InkList{items: make(map[ListItem]int, len(l.items))}
	for k, v := range l.items {
		c.items[k] = v
	}
	if len(l.origins) > 0 {
		c.origins = append([]string(nil), l.origins...)
	}
	return c
}

// WithOrigins returns a copy of l that remembers the given definitions.
func (l InkList) WithOrigins(names ...string) InkList {
	c := l.clone()
	c.origins = append([]string(nil), names...)
	sort.Strings(c.origins)
	return c
}

// Len returns the number of items.
func (l InkList) Len() int { return len(l.items) }

// Has reports whether item is in the list.
func (l InkList) Has(item ListItem) bool {
	_, ok := l.items[item]
	return ok
}

// ValueOf returns the value stored for item.
func (l InkList) ValueOf(item ListItem) (int, bool) {
	v, ok := l.items[item]
	return v, ok
}

// Entries returns the items ordered by value, then origin, then name.
func (l InkList) Entries() []ListEntry {
	out := make([]ListEntry, 0, len(l.items))
	for k, v := range l.items {
		out = append(out, ListEntry{Item: k, Value: v})
	}
	sortEntries(out)
	return out
}

func sortEntries(es []ListEntry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Item.Origin != b.Item.Origin {
			return a.Item.Origin < b.Item.Origin
		}
		return a.Item.Name < b.Item.Name
	})
}

// OriginNames returns the definitions the list draws from: the origins of
// its items, or the remembered origins when it is empty.
func (l InkList) OriginNames() []string {
	if len(l.items) == 0 {
		return append([]string(nil), l.origins...)
	}
	seen := make(map[string]bool)
	var out []string
	for k := range l.items {
		if k.Origin != "" && !seen[k.Origin] {
			seen[k.Origin] = true
			out = append(out, k.Origin)
		}
	}
	for _, o := range l.origins {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out
}

// Min returns the lowest-valued item.
func (l InkList) Min() (ListItem, int, bool) {
	es := l.Entries()
	if len(es) == 0 {
		return ListItem{}, 0, false
	}
	return es[0].Item, es[0].Value, true
}

// Max returns the highest-valued item.
func (l InkList) Max() (ListItem, int, bool) {
	es := l.Entries()
	if len(es) == 0 {
		return ListItem{}, 0, false
	}
	last := es[len(es)-1]
	return last.Item, last.Value, true
}

// MinAsList returns a single-item list holding the minimum, or an empty list.
func (l InkList) MinAsList() InkList {
	item, v, ok := l.Min()
	if !ok {
		return NewInkList()
	}
	return NewInkList(ListEntry{Item: item, Value: v})
}

// MaxAsList returns a single-item list holding the maximum, or an empty list.
func (l InkList) MaxAsList() InkList {
	item, v, ok := l.Max()
	if !ok {
		return NewInkList()
	}
	return NewInkList(ListEntry{Item: item, Value: v})
}

// Union returns the items in either list.
func (l InkList) Union(o InkList) InkList {
	c := l.clone()
	for k, v := range o.items {
		c.items[k] = v
	}
	return c
}

// Without returns l with every item of o removed. The result keeps the
// definitions of l even when no item is left.
func (l InkList) Without(o InkList) InkList {
	c := l.clone()
	c.origins = l.OriginNames()
	for k := range o.items {
		delete(c.items, k)
	}
	return c
}

// Intersect returns the items present in both lists.
func (l InkList) Intersect(o InkList) InkList {
	c := NewInkList()
	c.origins = l.OriginNames()
	for k, v := range l.items {
		if _, ok := o.items[k]; ok {
			c.items[k] = v
		}
	}
	return c
}

// Contains reports whether every item of o is in l. Empty lists never
// contain or are contained.
func (l InkList) Contains(o InkList) bool {
	if len(o.items) == 0 || len(l.items) == 0 {
		return false
	}
	for k := range o.items {
		if _, ok := l.items[k]; !ok {
			return false
		}
	}
	return true
}

// Equal compares item membership.
func (l InkList) Equal(o InkList) bool {
	if len(l.items) != len(o.items) {
		return false
	}
	for k := range l.items {
		if _, ok := o.items[k]; !ok {
			return false
		}
	}
	return true
}

// GreaterThan is true when every item of l outranks every item of o.
func (l InkList) GreaterThan(o InkList) bool {
	if l.Len() == 0 {
		return false
	}
	if o.Len() == 0 {
		return true
	}
	_, lmin, _ := l.Min()
	_, omax, _ := o.Max()
	return lmin > omax
}

// GreaterThanOrEquals compares both bounds.
func (l InkList) GreaterThanOrEquals(o InkList) bool {
	if l.Len() == 0 {
		return false
	}
	if o.Len() == 0 {
		return true
	}
	_, lmin, _ := l.Min()
	_, lmax, _ := l.Max()
	_, omin, _ := o.Min()
	_, omax, _ := o.Max()
	return lmin >= omin && lmax >= omax
}

// LessThan is true when every item of l ranks below every item of o.
func (l InkList) LessThan(o InkList) bool {
	if o.Len() == 0 {
		return false
	}
	if l.Len() == 0 {
		return true
	}
	_, lmax, _ := l.Max()
	_, omin, _ := o.Min()
	return lmax < omin
}

// LessThanOrEquals compares both bounds.
func (l InkList) LessThanOrEquals(o InkList) bool {
	if o.Len() == 0 {
		return false
	}
	if l.Len() == 0 {
		return true
	}
	_, lmin, _ := l.Min()
	_, lmax, _ := l.Max()
	_, omin, _ := o.Min()
	_, omax, _ := o.Max()
	return lmax <= omax && lmin <= omin
}

// All returns every item of every definition l draws from.
func (l InkList) All(defs *ListDefinitions) InkList {
	c := NewInkList()
	for _, name := range l.OriginNames() {
		if d, ok := defs.Lookup(name); ok {
			for _, e := range d.Entries() {
				c.items[e.Item] = e.Value
			}
		}
	}
	return c
}

// Inverse returns the items of l's definitions that are not in l.
func (l InkList) Inverse(defs *ListDefinitions) InkList {
	return l.All(defs).Without(l)
}

// SubRange keeps the items whose values lie in [lo, hi].
func (l InkList) SubRange(lo, hi int) InkList {
	c := NewInkList()
	c.origins = l.OriginNames()
	for k, v := range l.items {
		if v >= lo && v <= hi {
			c.items[k] = v
		}
	}
	return c
}

// String joins item names in value order.
func (l InkList) String() string {
	es := l.Entries()
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Item.Name
	}
	return strings.Join(names, ", ")
}
