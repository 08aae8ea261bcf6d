package document

import (
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

const (
	// maxRoleHops bounds RoleMap chains
	maxRoleHops = 10
	// maxTreeDepth bounds structure element nesting
	maxTreeDepth = 512
)

// treeBuilder copies a /StructTreeRoot into a structure.Tree arena
type treeBuilder struct {
	src     ObjectSource
	pages   map[int]int
	roles   map[string]string
	tree    *structure.Tree
	visited map[int]bool
	logger  *slog.Logger
}

// BuildTree converts the structure tree rooted at root. pages maps page
// object numbers to 1-based page numbers and resolves /Pg entries.
func BuildTree(src ObjectSource, root types.Dict, pages map[int]int, logger *slog.Logger) *structure.Tree {
	if logger == nil {
		logger = slog.Default()
	}
	b := &treeBuilder{
		src:     src,
		pages:   pages,
		roles:   roleMap(src, root),
		tree:    structure.NewTree(),
		visited: make(map[int]bool),
		logger:  logger,
	}
	if k, ok := root.Find("K"); ok {
		b.kid(structure.NoNode, k, 0)
	}
	return b.tree
}

func roleMap(src ObjectSource, root types.Dict) map[string]string {
	roles := make(map[string]string)
	rm, ok := root.Find("RoleMap")
	if !ok {
		return roles
	}
	d, ok := dictOf(src, rm)
	if !ok {
		return roles
	}
	for k, v := range d {
		if name, ok := nameOf(src, v); ok {
			roles[k] = name
		}
	}
	return roles
}

// mapRole follows the role map until it reaches an unmapped type
func (b *treeBuilder) mapRole(s string) string {
	typ := s
	for i := 0; i < maxRoleHops; i++ {
		next, ok := b.roles[typ]
		if !ok || next == typ {
			break
		}
		typ = next
	}
	return typ
}

func (b *treeBuilder) pageOf(d types.Dict) int {
	pg, ok := d.Find("Pg")
	if !ok {
		return 0
	}
	return b.pages[objectNumber(pg)]
}

// kid adds one /K entry below parent
func (b *treeBuilder) kid(parent structure.NodeID, o types.Object, depth int) {
	if depth > maxTreeDepth {
		b.logger.Warn("structure tree too deep, truncating", "depth", depth)
		return
	}

	switch v := deref(b.src, o).(type) {
	case types.Integer:
		if parent != structure.NoNode {
			b.tree.AddMCID(parent, int(v), 0)
		}
	case types.Array:
		for _, item := range v {
			b.kid(parent, item, depth)
		}
	case types.Dict:
		b.dict(parent, o, v, depth)
	}
}

func (b *treeBuilder) dict(parent structure.NodeID, ref types.Object, d types.Dict, depth int) {
	if typ, _ := nameOf(b.src, d["Type"]); typ == "MCR" {
		if parent == structure.NoNode {
			return
		}
		if mcid, ok := intOf(b.src, d["MCID"]); ok {
			b.tree.AddMCID(parent, mcid, b.pageOf(d))
		}
		return
	} else if typ == "OBJR" {
		return
	}

	s, ok := nameOf(b.src, d["S"])
	if !ok {
		return
	}

	objNum := objectNumber(ref)
	if objNum > 0 {
		if b.visited[objNum] {
			b.logger.Debug("structure element already visited", "object", objNum)
			return
		}
		b.visited[objNum] = true
	}

	node := structure.Node{
		Type:      b.mapRole(s),
		RawType:   s,
		Parent:    parent,
		Page:      b.pageOf(d),
		ObjectNum: objNum,
	}
	if at, ok := d.Find("ActualText"); ok {
		node.ActualText, node.HasActualText = textOf(b.src, at)
	}

	id := b.tree.Add(node)
	if k, ok := d.Find("K"); ok {
		b.kid(id, k, depth+1)
	}
}
