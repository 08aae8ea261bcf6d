package document

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ObjectSource resolves indirect objects. *model.Context satisfies it.
type ObjectSource interface {
	Dereference(o types.Object) (types.Object, error)
	DereferenceStreamDict(o types.Object) (*types.StreamDict, bool, error)
	DereferenceStringOrHexLiteral(o types.Object, sinceVersion model.Version, validate func(string) bool) (string, error)
}

var _ ObjectSource = (*model.Context)(nil)

// maxInherit bounds /Parent chains when looking up inheritable page keys
const maxInherit = 32

func deref(src ObjectSource, o types.Object) types.Object {
	if o == nil {
		return nil
	}
	v, err := src.Dereference(o)
	if err != nil {
		return nil
	}
	return v
}

func dictOf(src ObjectSource, o types.Object) (types.Dict, bool) {
	switch v := deref(src, o).(type) {
	case types.Dict:
		return v, true
	case types.StreamDict:
		return v.Dict, true
	case *types.StreamDict:
		return v.Dict, true
	}
	return nil, false
}

func arrayOf(src ObjectSource, o types.Object) (types.Array, bool) {
	a, ok := deref(src, o).(types.Array)
	return a, ok
}

func intOf(src ObjectSource, o types.Object) (int, bool) {
	switch v := deref(src, o).(type) {
	case types.Integer:
		return int(v), true
	case types.Float:
		return int(v), true
	}
	return 0, false
}

func floatOf(src ObjectSource, o types.Object) (float64, bool) {
	switch v := deref(src, o).(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func nameOf(src ObjectSource, o types.Object) (string, bool) {
	n, ok := deref(src, o).(types.Name)
	return string(n), ok
}

func textOf(src ObjectSource, o types.Object) (string, bool) {
	if o == nil {
		return "", false
	}
	s, err := src.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return "", false
	}
	return s, true
}

// objectNumber returns the object number of an indirect reference, 0 for
// direct objects
func objectNumber(o types.Object) int {
	switch r := o.(type) {
	case types.IndirectRef:
		return int(r.ObjectNumber)
	case *types.IndirectRef:
		if r != nil {
			return int(r.ObjectNumber)
		}
	}
	return 0
}

// inherited looks a key up on a page dict and then its /Parent chain
func inherited(src ObjectSource, page types.Dict, key string) (types.Object, bool) {
	d := page
	for i := 0; i < maxInherit && d != nil; i++ {
		if v, ok := d.Find(key); ok && v != nil {
			return v, true
		}
		parent, ok := d.Find("Parent")
		if !ok {
			return nil, false
		}
		d, _ = dictOf(src, parent)
	}
	return nil, false
}
