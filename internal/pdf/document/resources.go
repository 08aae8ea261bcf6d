package document

import (
	"fmt"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// resources is one resource scope. Object lookups go through pdfcpu; fonts
// go through ledongthuc, which carries the encoding and ToUnicode handling.
type resources struct {
	src  ObjectSource
	mu   *sync.Mutex
	dict types.Dict
	val  pdf.Value

	fonts map[string]content.Font
	forms map[string]*content.Form
}

var _ content.Resources = (*resources)(nil)

func newResources(src ObjectSource, mu *sync.Mutex, dict types.Dict, val pdf.Value) *resources {
	return &resources{
		src:   src,
		mu:    mu,
		dict:  dict,
		val:   val,
		fonts: make(map[string]content.Font),
		forms: make(map[string]*content.Form),
	}
}

func (r *resources) Font(name string) (content.Font, error) {
	if f, ok := r.fonts[name]; ok {
		return f, nil
	}
	r.mu.Lock()
	f, err := r.loadFont(name)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r.fonts[name] = f
	return f, nil
}

// loadFont prefers ledongthuc and falls back to the pdfcpu dictionary
// when the scope has no ledongthuc value.
func (r *resources) loadFont(name string) (content.Font, error) {
	if r.val.IsNull() {
		fonts, _ := dictOf(r.src, r.dict["Font"])
		return newSimpleFont(r.src, name, fonts)
	}
	return newFont(name, r.val.Key("Font").Key(name))
}

func (r *resources) MarkedContentID(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	props, ok := dictOf(r.src, r.dict["Properties"])
	if !ok {
		return 0, false
	}
	entry, ok := dictOf(r.src, props[name])
	if !ok {
		return 0, false
	}
	return intOf(r.src, entry["MCID"])
}

func (r *resources) Form(name string) (*content.Form, error) {
	if f, ok := r.forms[name]; ok {
		return f, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	xobjects, ok := dictOf(r.src, r.dict["XObject"])
	if !ok {
		return nil, fmt.Errorf("xobject %s not found", name)
	}
	ref, ok := xobjects[name]
	if !ok {
		return nil, fmt.Errorf("xobject %s not found", name)
	}
	sd, _, err := r.src.DereferenceStreamDict(ref)
	if err != nil {
		return nil, fmt.Errorf("xobject %s: %w", name, err)
	}
	if sd == nil {
		return nil, fmt.Errorf("xobject %s is not a stream", name)
	}
	if sub, _ := nameOf(r.src, sd.Dict["Subtype"]); sub != "Form" {
		r.forms[name] = nil
		return nil, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("xobject %s: %w", name, err)
	}

	form := &content.Form{
		Content: sd.Content,
		Matrix:  matrixOf(r.src, sd.Dict["Matrix"]),
	}
	if resDict, ok := dictOf(r.src, sd.Dict["Resources"]); ok {
		val := r.val.Key("XObject").Key(name).Key("Resources")
		form.Resources = newResources(r.src, r.mu, resDict, val)
	}
	r.forms[name] = form
	return form, nil
}

// matrixOf reads a six-number array, identity when absent or malformed
func matrixOf(src ObjectSource, o types.Object) content.Matrix {
	arr, ok := arrayOf(src, o)
	if !ok || len(arr) != 6 {
		return content.Identity()
	}
	var m content.Matrix
	for i := range arr {
		v, ok := floatOf(src, arr[i])
		if !ok {
			return content.Identity()
		}
		m[i] = v
	}
	return m
}
