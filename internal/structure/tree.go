// Package structure walks a tagged PDF's logical structure tree and turns
// it into paragraph, list and table records with stable identifiers.
package structure

import "strings"

// NodeID addresses a node in a Tree
type NodeID int

// NoNode marks a missing parent
const NoNode NodeID = -1

// KidKind tags the variant held by a Kid
type KidKind int

const (
	// KidNode is a child structure element
	KidNode KidKind = iota
	// KidMCID is a marked-content reference, direct or through an MCR
	KidMCID
)

// Kid is one entry of a node's /K array
type Kid struct {
	Kind KidKind
	Node NodeID
	MCID int
	// Page is the MCR's own /Pg page number, 0 when absent
	Page int
}

// Node is one structure element. Parent and page relations are stored by
// index so the tree carries no pointer cycles.
type Node struct {
	ID NodeID
	// Type is the standard type after role mapping
	Type string
	// RawType is the /S value as written
	RawType string
	Parent  NodeID
	Kids    []Kid
	// Page is the element's /Pg page number, 0 when absent
	Page          int
	ActualText    string
	HasActualText bool
	// ObjectNum is the element's indirect object number, 0 for direct objects
	ObjectNum int
}

// Tree is an arena of structure nodes
type Tree struct {
	Nodes []Node
	Roots []NodeID
}

// NewTree returns an empty tree
func NewTree() *Tree {
	return &Tree{}
}

// Add appends a node and returns its id. A node with a valid parent is also
// attached as that parent's next kid.
func (t *Tree) Add(n Node) NodeID {
	id := NodeID(len(t.Nodes))
	n.ID = id
	t.Nodes = append(t.Nodes, n)
	if n.Parent == NoNode {
		t.Roots = append(t.Roots, id)
	} else if t.valid(n.Parent) {
		t.Nodes[n.Parent].Kids = append(t.Nodes[n.Parent].Kids, Kid{Kind: KidNode, Node: id})
	}
	return id
}

// AddMCID appends a marked-content kid to node id
func (t *Tree) AddMCID(id NodeID, mcid, page int) {
	if !t.valid(id) {
		return
	}
	t.Nodes[id].Kids = append(t.Nodes[id].Kids, Kid{Kind: KidMCID, MCID: mcid, Page: page})
}

// Node returns the node with the given id, or nil
func (t *Tree) Node(id NodeID) *Node {
	if !t.valid(id) {
		return nil
	}
	return &t.Nodes[id]
}

// Len returns the number of nodes
func (t *Tree) Len() int {
	return len(t.Nodes)
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.Nodes)
}

// Children returns the element kids of id in order
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, k := range n.Kids {
		if k.Kind == KidNode {
			out = append(out, k.Node)
		}
	}
	return out
}

// InheritedPage returns the /Pg of id or of its nearest ancestor that has
// one, 0 when none does
func (t *Tree) InheritedPage(id NodeID) int {
	for steps := 0; t.valid(id) && steps <= len(t.Nodes); steps++ {
		n := &t.Nodes[id]
		if n.Page != 0 {
			return n.Page
		}
		id = n.Parent
	}
	return 0
}

// TypeIs reports whether the node's mapped type equals typ, ignoring case
func (t *Tree) TypeIs(id NodeID, typ string) bool {
	n := t.Node(id)
	return n != nil && strings.EqualFold(n.Type, typ)
}

// Standard structure types used by the walker
const (
	TypeP     = "P"
	TypeTable = "Table"
	TypeTR    = "TR"
	TypeTH    = "TH"
	TypeTD    = "TD"
	TypeTHead = "THead"
	TypeTBody = "TBody"
	TypeTFoot = "TFoot"
	TypeL     = "L"
	TypeLI    = "LI"
	TypeLbl   = "Lbl"
	TypeLBody = "LBody"
)

var tableTypes = map[string]bool{
	"table": true, "tr": true, "td": true, "th": true,
	"thead": true, "tbody": true, "tfoot": true,
}

// containerTypes are grouping elements that carry no paragraph semantics
var containerTypes = map[string]bool{
	"document": true, "part": true, "art": true, "sect": true,
	"div": true, "nonstruct": true,
}

// isTableType reports whether typ belongs to a table hierarchy
func isTableType(typ string) bool {
	return tableTypes[strings.ToLower(typ)]
}

func isContainerType(typ string) bool {
	return containerTypes[strings.ToLower(typ)]
}
