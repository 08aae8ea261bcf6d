package document

import (
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// maxNumTreeDepth bounds /Kids recursion in number trees
const maxNumTreeDepth = 32

// ReverseIndex finds the page of a marked-content reference through the
// document's /ParentTree. It is the slow path for elements that carry no
// /Pg, and results are memoized per (element, mcid).
type ReverseIndex struct {
	src           ObjectSource
	tree          *structure.Tree
	parentTree    types.Dict
	structParents []int
	logger        *slog.Logger

	mu      sync.Mutex
	located map[locKey]int
	entries map[int]types.Array
}

type locKey struct {
	node structure.NodeID
	mcid int
}

var _ structure.PageLocator = (*ReverseIndex)(nil)

// NewReverseIndex builds a locator. structParents holds each page's
// /StructParents key in page order, -1 where a page has none.
func NewReverseIndex(src ObjectSource, tree *structure.Tree, parentTree types.Dict, structParents []int, logger *slog.Logger) *ReverseIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReverseIndex{
		src:           src,
		tree:          tree,
		parentTree:    parentTree,
		structParents: structParents,
		logger:        logger,
		located:       make(map[locKey]int),
		entries:       make(map[int]types.Array),
	}
}

// LocatePage scans pages in order for one whose parent tree entry maps mcid
// back to the element
func (r *ReverseIndex) LocatePage(id structure.NodeID, mcid int) (int, bool) {
	key := locKey{node: id, mcid: mcid}

	r.mu.Lock()
	defer r.mu.Unlock()

	if page, ok := r.located[key]; ok {
		return page, page > 0
	}

	node := r.tree.Node(id)
	if node == nil || node.ObjectNum == 0 || r.parentTree == nil || mcid < 0 {
		r.located[key] = 0
		return 0, false
	}

	r.logger.Debug("resolving tag through parent tree", "object", node.ObjectNum, "mcid", mcid)

	page := 0
	for i, sp := range r.structParents {
		if sp < 0 {
			continue
		}
		arr := r.entry(sp)
		if mcid < len(arr) && objectNumber(arr[mcid]) == node.ObjectNum {
			page = i + 1
			break
		}
	}
	r.located[key] = page
	return page, page > 0
}

// entry returns the parent tree array for a /StructParents key
func (r *ReverseIndex) entry(key int) types.Array {
	if arr, ok := r.entries[key]; ok {
		return arr
	}
	var arr types.Array
	if v, ok := lookupNumber(r.src, r.parentTree, key, 0); ok {
		arr, _ = arrayOf(r.src, v)
	}
	r.entries[key] = arr
	return arr
}

// lookupNumber finds key in a number tree, using /Limits to prune /Kids
func lookupNumber(src ObjectSource, node types.Dict, key, depth int) (types.Object, bool) {
	if depth > maxNumTreeDepth {
		return nil, false
	}

	if nums, ok := arrayOf(src, node["Nums"]); ok {
		for i := 0; i+1 < len(nums); i += 2 {
			if k, ok := intOf(src, nums[i]); ok && k == key {
				return nums[i+1], true
			}
		}
	}

	kids, ok := arrayOf(src, node["Kids"])
	if !ok {
		return nil, false
	}
	for _, kid := range kids {
		d, ok := dictOf(src, kid)
		if !ok {
			continue
		}
		if limits, ok := arrayOf(src, d["Limits"]); ok && len(limits) == 2 {
			lo, _ := intOf(src, limits[0])
			hi, _ := intOf(src, limits[1])
			if key < lo || key > hi {
				continue
			}
		}
		if v, ok := lookupNumber(src, d, key, depth+1); ok {
			return v, true
		}
	}
	return nil, false
}
