package document

import (
	"fmt"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// objects is an in-memory object table
type objects map[int]types.Object

func ref(n int) types.IndirectRef {
	return types.IndirectRef{ObjectNumber: types.Integer(n)}
}

func (o objects) Dereference(obj types.Object) (types.Object, error) {
	switch r := obj.(type) {
	case types.IndirectRef:
		return o[int(r.ObjectNumber)], nil
	case *types.IndirectRef:
		return o[int(r.ObjectNumber)], nil
	}
	return obj, nil
}

func (o objects) DereferenceStreamDict(obj types.Object) (*types.StreamDict, bool, error) {
	v, _ := o.Dereference(obj)
	sd, ok := v.(types.StreamDict)
	if !ok {
		return nil, false, fmt.Errorf("not a stream")
	}
	return &sd, true, nil
}

func (o objects) DereferenceStringOrHexLiteral(obj types.Object, _ model.Version, _ func(string) bool) (string, error) {
	v, _ := o.Dereference(obj)
	if s, ok := v.(types.StringLiteral); ok {
		return string(s), nil
	}
	return "", fmt.Errorf("not a string")
}

func TestBuildTree(t *testing.T) {
	src := objects{
		10: types.Dict{"Type": types.Name("StructElem"), "S": types.Name("Sect"), "K": types.Array{ref(11), ref(12), ref(13)}},
		11: types.Dict{"S": types.Name("Heading"), "Pg": ref(3), "K": types.Integer(0)},
		12: types.Dict{"S": types.Name("P"), "K": types.Array{
			types.Dict{"Type": types.Name("MCR"), "MCID": types.Integer(4), "Pg": ref(5)},
			types.Dict{"Type": types.Name("OBJR"), "Obj": ref(99)},
			types.Integer(7),
		}},
		13: types.Dict{"S": types.Name("Figure"), "ActualText": types.StringLiteral("Logo"), "K": ref(10)},
	}
	root := types.Dict{
		"K":       ref(10),
		"RoleMap": types.Dict{"Heading": types.Name("Title"), "Title": types.Name("H1")},
	}

	tree := BuildTree(src, root, map[int]int{3: 1, 5: 2}, nil)
	require.Equal(t, 4, tree.Len())
	require.Len(t, tree.Roots, 1)

	sect := tree.Node(tree.Roots[0])
	assert.Equal(t, "Sect", sect.Type)
	assert.Equal(t, 10, sect.ObjectNum)
	kids := tree.Children(sect.ID)
	require.Len(t, kids, 3)

	heading := tree.Node(kids[0])
	assert.Equal(t, "H1", heading.Type)
	assert.Equal(t, "Heading", heading.RawType)
	assert.Equal(t, 1, heading.Page)
	assert.Equal(t, []structure.Kid{{Kind: structure.KidMCID, MCID: 0}}, heading.Kids)

	para := tree.Node(kids[1])
	assert.Equal(t, 0, para.Page)
	assert.Equal(t, []structure.Kid{
		{Kind: structure.KidMCID, MCID: 4, Page: 2},
		{Kind: structure.KidMCID, MCID: 7},
	}, para.Kids)

	// the figure points back at the section; the cycle is cut
	fig := tree.Node(kids[2])
	assert.True(t, fig.HasActualText)
	assert.Equal(t, "Logo", fig.ActualText)
	assert.Empty(t, fig.Kids)
}

func TestBuildTreeRoleMapCycle(t *testing.T) {
	src := objects{1: types.Dict{"S": types.Name("A")}}
	root := types.Dict{
		"K":       types.Array{ref(1)},
		"RoleMap": types.Dict{"A": types.Name("B"), "B": types.Name("A")},
	}
	tree := BuildTree(src, root, nil, nil)
	require.Equal(t, 1, tree.Len())
	assert.Contains(t, []string{"A", "B"}, tree.Nodes[0].Type)
}

func TestLookupNumber(t *testing.T) {
	src := objects{
		20: types.Dict{"Limits": types.Array{types.Integer(0), types.Integer(1)}, "Nums": types.Array{
			types.Integer(0), types.Array{ref(30)},
			types.Integer(1), types.Array{ref(31)},
		}},
		21: types.Dict{"Limits": types.Array{types.Integer(5), types.Integer(9)}, "Nums": types.Array{
			types.Integer(7), types.Array{ref(32), ref(33)},
		}},
	}
	tree := types.Dict{"Kids": types.Array{ref(20), ref(21)}}

	v, ok := lookupNumber(src, tree, 7, 0)
	require.True(t, ok)
	arr, ok := arrayOf(src, v)
	require.True(t, ok)
	assert.Equal(t, 33, objectNumber(arr[1]))

	_, ok = lookupNumber(src, tree, 3, 0)
	assert.False(t, ok)
}

type countingSource struct {
	objects
	calls int
}

func (c *countingSource) Dereference(obj types.Object) (types.Object, error) {
	c.calls++
	return c.objects.Dereference(obj)
}

func TestReverseIndex(t *testing.T) {
	src := &countingSource{objects: objects{
		40: types.Array{ref(50), ref(51)},
		41: types.Array{ref(52), ref(50), ref(51)},
	}}
	parentTree := types.Dict{"Nums": types.Array{
		types.Integer(0), ref(40),
		types.Integer(1), ref(41),
	}}

	tree := structure.NewTree()
	a := tree.Add(structure.Node{Type: "P", Parent: structure.NoNode, ObjectNum: 51})
	b := tree.Add(structure.Node{Type: "P", Parent: structure.NoNode})

	idx := NewReverseIndex(src, tree, parentTree, []int{0, -1, 1}, nil)

	page, ok := idx.LocatePage(a, 1)
	assert.True(t, ok)
	assert.Equal(t, 1, page)

	page, ok = idx.LocatePage(a, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, page)

	_, ok = idx.LocatePage(a, 5)
	assert.False(t, ok)

	// no object number, nothing to match
	_, ok = idx.LocatePage(b, 0)
	assert.False(t, ok)

	calls := src.calls
	page, ok = idx.LocatePage(a, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, page)
	assert.Equal(t, calls, src.calls)
}
