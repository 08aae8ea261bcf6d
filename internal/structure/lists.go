package structure

// emitList emits each LI of an L node as its own paragraph. Nested lists are
// emitted after the item that contains them so their text is never folded
// into the parent item.
func (w *walk) emitList(id NodeID) {
	for _, child := range w.tree.Children(id) {
		switch {
		case w.tree.TypeIs(child, TypeLI):
			w.emitListItem(child)
		case w.tree.TypeIs(child, TypeL):
			w.emitList(child)
		}
	}
}

func (w *walk) emitListItem(id NodeID) {
	var label, body []*resolved
	var nested []NodeID

	item := w.tree.Node(id)
	for _, k := range item.Kids {
		if k.Kind == KidMCID {
			body = append(body, w.resolveKids(id, []Kid{k}))
			continue
		}
		child := k.Node
		switch {
		case w.tree.TypeIs(child, TypeLbl):
			label = append(label, w.resolveNode(child))
		case w.tree.TypeIs(child, TypeLBody):
			lists, rest := w.splitNestedLists(child)
			if len(lists) == 0 {
				body = append(body, w.resolveNode(child))
			} else {
				nested = append(nested, lists...)
				body = append(body, w.resolveKids(child, rest))
			}
		case w.tree.TypeIs(child, TypeL):
			nested = append(nested, child)
		default:
			body = append(body, w.resolveNode(child))
		}
	}

	r := combine(append(label, body...)...)
	if r.text != "" {
		w.paragraphs = append(w.paragraphs, r.record(w.ids.nextParagraph(), TypeLI))
	}

	for _, l := range nested {
		w.emitList(l)
	}
}

// splitNestedLists separates the L children of a list body from the rest of
// its kids, direct marked content included
func (w *walk) splitNestedLists(body NodeID) (lists []NodeID, rest []Kid) {
	for _, k := range w.tree.Node(body).Kids {
		if k.Kind == KidNode && w.tree.TypeIs(k.Node, TypeL) {
			lists = append(lists, k.Node)
			continue
		}
		rest = append(rest, k)
	}
	return lists, rest
}
