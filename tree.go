package datawrapper

import (
	"fmt"
	"reflect"
)

// ToTree assembles a flat list into a forest. parent returns the parent key
// of an item and false for roots. attach receives each item together with
// its children. Only items without a parent reference are returned, in
// input order, and every item is attached under at most one parent. Items
// whose parent is missing from the list, and cycles with no path to a root,
// are dropped.
//
// Usage:
//
//	roots := datawrapper.ToTree(categories,
//	    func(c *Category) int64 { return c.ID },
//	    func(c *Category) (int64, bool) {
//	        if c.ParentID == nil {
//	            return 0, false
//	        }
//	        return *c.ParentID, true
//	    },
//	    func(c *Category, children []*Category) { c.Children = children })
func ToTree[T any, K comparable](items []*T, id func(*T) K, parent func(*T) (K, bool), attach func(*T, []*T)) []*T {
	index := make(map[K]*T, len(items))
	for _, item := range items {
		index[id(item)] = item
	}

	children := make(map[*T][]*T, len(items))
	roots := make([]*T, 0)

	for _, item := range items {
		key, ok := parent(item)
		if !ok {
			roots = append(roots, item)
			continue
		}
		if p, found := index[key]; found {
			children[p] = append(children[p], item)
		}
	}

	for _, item := range items {
		if kids, ok := children[item]; ok {
			attach(item, kids)
		}
	}

	return roots
}

// TreeOptions names the struct fields used by ToTreeByField
type TreeOptions struct {
	IDField       string
	ParentField   string
	ChildrenField string
}

// DefaultTreeOptions uses the ID, ParentID and Children fields
func DefaultTreeOptions() TreeOptions {
	return TreeOptions{IDField: "ID", ParentField: "ParentID", ChildrenField: "Children"}
}

// ToTreeByField is the reflective form of ToTree working on named struct
// fields. The parent field may be a pointer (nil for roots) or a value (zero
// for roots). The children field must be a []*T.
//
// Usage:
//
//	roots, err := datawrapper.ToTreeByField(categories, datawrapper.DefaultTreeOptions())
func ToTreeByField[T any](items []*T, opts TreeOptions) ([]*T, error) {
	d := DefaultTreeOptions()
	if opts.IDField == "" {
		opts.IDField = d.IDField
	}
	if opts.ParentField == "" {
		opts.ParentField = d.ParentField
	}
	if opts.ChildrenField == "" {
		opts.ChildrenField = d.ChildrenField
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("datawrapper: tree of %s: not a struct", typ)
	}

	idField, ok := typ.FieldByName(opts.IDField)
	if !ok {
		return nil, fmt.Errorf("datawrapper: tree of %s: no field %s", typ.Name(), opts.IDField)
	}
	parentField, ok := typ.FieldByName(opts.ParentField)
	if !ok {
		return nil, fmt.Errorf("datawrapper: tree of %s: no field %s", typ.Name(), opts.ParentField)
	}
	childrenField, ok := typ.FieldByName(opts.ChildrenField)
	if !ok {
		return nil, fmt.Errorf("datawrapper: tree of %s: no field %s", typ.Name(), opts.ChildrenField)
	}
	if childrenField.Type != reflect.TypeFor[[]*T]() {
		return nil, fmt.Errorf("datawrapper: tree of %s: field %s must be []*%s", typ.Name(), opts.ChildrenField, typ.Name())
	}

	parentType := parentField.Type
	if parentType.Kind() == reflect.Pointer {
		parentType = parentType.Elem()
	}
	if !parentType.ConvertibleTo(idField.Type) {
		return nil, fmt.Errorf("datawrapper: tree of %s: %s and %s have incompatible types", typ.Name(), opts.ParentField, opts.IDField)
	}

	roots := ToTree(items,
		func(item *T) any {
			return reflect.ValueOf(item).Elem().FieldByIndex(idField.Index).Interface()
		},
		func(item *T) (any, bool) {
			v := reflect.ValueOf(item).Elem().FieldByIndex(parentField.Index)
			if v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return nil, false
				}
				v = v.Elem()
			} else if v.IsZero() {
				return nil, false
			}
			return v.Convert(idField.Type).Interface(), true
		},
		func(item *T, children []*T) {
			reflect.ValueOf(item).Elem().FieldByIndex(childrenField.Index).Set(reflect.ValueOf(children))
		},
	)
	return roots, nil
}
