package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	Encrypted bool
	Repaired  bool
}

// NewDocument returns an empty document with an initialized object table.
func NewDocument(version string) *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	obj, ok := d.Objects[ref]
	return obj, ok
}

// Resolve follows references until a direct object is reached. Dangling
// references resolve to NullObj, matching how readers treat them.
func (d *Document) Resolve(obj Object) Object {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, found := d.Objects[ref.R]
		if !found {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// Add stores obj under the next free object number and returns its reference.
func (d *Document) Add(obj Object) ObjectRef {
	ref := ObjectRef{Num: d.MaxObjectNum() + 1}
	d.Objects[ref] = obj
	return ref
}

// MaxObjectNum returns the highest object number in use.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Refs returns all object references ordered by object number.
func (d *Document) Refs() []ObjectRef {
	out := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Num == out[j].Num {
			return out[i].Gen < out[j].Gen
		}
		return out[i].Num < out[j].Num
	})
	return out
}

// Catalog returns the document catalog referenced by the trailer /Root.
func (d *Document) Catalog() (*DictObj, bool) {
	if d.Trailer == nil {
		return nil, false
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, false
	}
	cat, ok := d.Resolve(root).(*DictObj)
	return cat, ok
}
