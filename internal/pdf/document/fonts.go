package document

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// defaultWidth is used when a simple font carries no /Widths at all
const defaultWidth = 500

// font adapts a ledongthuc font to content.Font. Type0 fonts use two-byte
// codes and CID widths from the descendant font.
type font struct {
	name    string
	f       pdf.Font
	enc     pdf.TextEncoding
	twoByte bool

	hasWidths    bool
	missingWidth float64
	cidWidths    map[int]float64
	defaultCID   float64
}

// newFont builds the adapter. The encoder is built once here since
// pdf.Font does not keep it between calls.
func newFont(name string, v pdf.Value) (ft *font, err error) {
	defer func() {
		if r := recover(); r != nil {
			ft, err = nil, fmt.Errorf("font %s: %v", name, r)
		}
	}()

	if v.IsNull() {
		return nil, fmt.Errorf("font %s not found", name)
	}

	f := pdf.Font{V: v}
	ft = &font{
		name:    name,
		f:       f,
		enc:     f.Encoder(),
		twoByte: v.Key("Subtype").Name() == "Type0",
	}

	if ft.twoByte {
		ft.loadCIDWidths(v.Key("DescendantFonts").Index(0))
	} else {
		ft.hasWidths = v.Key("Widths").Kind() == pdf.Array
		ft.missingWidth = v.Key("FontDescriptor").Key("MissingWidth").Float64()
	}
	return ft, nil
}

// loadCIDWidths reads /W in both of its forms:
// c [w1 w2 ...] and c_first c_last w
func (ft *font) loadCIDWidths(desc pdf.Value) {
	ft.cidWidths = make(map[int]float64)
	ft.defaultCID = 1000
	if dw := desc.Key("DW"); dw.Kind() == pdf.Integer || dw.Kind() == pdf.Real {
		ft.defaultCID = dw.Float64()
	}

	w := desc.Key("W")
	for i := 0; i < w.Len(); {
		first := w.Index(i)
		if i+1 >= w.Len() {
			break
		}
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			start := int(first.Int64())
			for j := 0; j < next.Len(); j++ {
				ft.cidWidths[start+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			break
		}
		lo, hi := int(first.Int64()), int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := lo; c <= hi && c-lo < 0x10000; c++ {
			ft.cidWidths[c] = width
		}
		i += 3
	}
}

func (ft *font) Codes(s []byte) []content.Code {
	return splitCodes(s, ft.twoByte)
}

func splitCodes(s []byte, twoByte bool) []content.Code {
	if !twoByte {
		codes := make([]content.Code, len(s))
		for i := range s {
			codes[i] = content.Code{Raw: s[i : i+1], Value: int(s[i])}
		}
		return codes
	}

	codes := make([]content.Code, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		if i+1 >= len(s) {
			codes = append(codes, content.Code{Raw: s[i : i+1], Value: int(s[i])})
			break
		}
		codes = append(codes, content.Code{Raw: s[i : i+2], Value: int(s[i])<<8 | int(s[i+1])})
	}
	return codes
}

func (ft *font) Decode(c content.Code) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()
	if ft.enc == nil {
		return "", false
	}
	text = ft.enc.Decode(string(c.Raw))
	return text, text != ""
}

func (ft *font) Width(c content.Code) float64 {
	if ft.twoByte {
		if w, ok := ft.cidWidths[c.Value]; ok {
			return w
		}
		return ft.defaultCID
	}
	if !ft.hasWidths {
		return defaultWidth
	}
	if w := ft.f.Width(c.Value); w > 0 {
		return w
	}
	return ft.missingWidth
}

// simpleFont reads widths straight from the pdfcpu font dictionary and maps
// single-byte codes as Latin-1. It serves documents ledongthuc cannot open;
// two-byte codes stay undecoded.
type simpleFont struct {
	twoByte      bool
	firstChar    int
	widths       []float64
	missingWidth float64
	defaultCID   float64
}

func newSimpleFont(src ObjectSource, name string, fonts types.Dict) (*simpleFont, error) {
	dict, ok := dictOf(src, fonts[name])
	if !ok {
		return nil, fmt.Errorf("font %s not found", name)
	}
	sub, _ := nameOf(src, dict["Subtype"])
	ft := &simpleFont{twoByte: sub == "Type0", defaultCID: 1000}
	if ft.twoByte {
		return ft, nil
	}

	ft.firstChar, _ = intOf(src, dict["FirstChar"])
	if arr, ok := arrayOf(src, dict["Widths"]); ok {
		ft.widths = make([]float64, len(arr))
		for i := range arr {
			ft.widths[i], _ = floatOf(src, arr[i])
		}
	}
	if desc, ok := dictOf(src, dict["FontDescriptor"]); ok {
		ft.missingWidth, _ = floatOf(src, desc["MissingWidth"])
	}
	return ft, nil
}

func (ft *simpleFont) Codes(s []byte) []content.Code {
	return splitCodes(s, ft.twoByte)
}

func (ft *simpleFont) Decode(c content.Code) (string, bool) {
	if ft.twoByte || c.Value < 0x20 || c.Value == 0x7f {
		return "", false
	}
	return string(rune(c.Value)), true
}

func (ft *simpleFont) Width(c content.Code) float64 {
	if ft.twoByte {
		return ft.defaultCID
	}
	if ft.widths == nil {
		return defaultWidth
	}
	if i := c.Value - ft.firstChar; i >= 0 && i < len(ft.widths) && ft.widths[i] > 0 {
		return ft.widths[i]
	}
	return ft.missingWidth
}
