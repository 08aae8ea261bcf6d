package document

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// letter is the media box used when a page declares none
var letter = content.Rect{X1: 612, Y1: 792}

// page implements content.Page over one page dictionary
type page struct {
	number int
	src    ObjectSource
	mu     *sync.Mutex
	dict   types.Dict
	val    pdf.Page

	resOnce sync.Once
	res     *resources
}

var _ content.Page = (*page)(nil)

func (p *page) Number() int { return p.number }

// Content returns the page's content streams decoded and joined
func (p *page) Content() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	obj, ok := p.dict.Find("Contents")
	if !ok {
		return nil, nil
	}

	var streams []types.Object
	if arr, ok := arrayOf(p.src, obj); ok {
		streams = arr
	} else {
		streams = []types.Object{obj}
	}

	var buf bytes.Buffer
	for i, s := range streams {
		sd, _, err := p.src.DereferenceStreamDict(s)
		if err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		if sd == nil {
			continue
		}
		if err := sd.Decode(); err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(sd.Content)
	}
	return buf.Bytes(), nil
}

func (p *page) Resources() content.Resources {
	p.resOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		dict := types.Dict{}
		if o, ok := inherited(p.src, p.dict, "Resources"); ok {
			if d, ok := dictOf(p.src, o); ok {
				dict = d
			}
		}
		p.res = newResources(p.src, p.mu, dict, p.val.Resources())
	})
	return p.res
}

func (p *page) Geometry() content.Geometry {
	p.mu.Lock()
	defer p.mu.Unlock()

	g := content.Geometry{MediaBox: letter}
	if o, ok := inherited(p.src, p.dict, "MediaBox"); ok {
		if arr, ok := arrayOf(p.src, o); ok && len(arr) == 4 {
			var v [4]float64
			valid := true
			for i := range arr {
				if v[i], ok = floatOf(p.src, arr[i]); !ok {
					valid = false
				}
			}
			if valid {
				g.MediaBox = content.Rect{
					X0: math.Min(v[0], v[2]),
					Y0: math.Min(v[1], v[3]),
					X1: math.Max(v[0], v[2]),
					Y1: math.Max(v[1], v[3]),
				}
			}
		}
	}
	if o, ok := inherited(p.src, p.dict, "Rotate"); ok {
		if rot, ok := intOf(p.src, o); ok {
			g.Rotation = ((rot % 360) + 360) % 360
		}
	}
	return g
}
