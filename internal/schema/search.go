package schema

// Fields lists the named children of a record in declaration order. Nested
// unannotated pairs are flattened so that multi-field records encoded as
// binary pair trees read as one flat record.
func Fields(record *Node) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Args {
			if child.Kind == KindPair && child.Annot == "" {
				walk(child)
				continue
			}
			out = append(out, child)
		}
	}
	if record.Kind == KindPair {
		walk(record)
	}
	return out
}

// FindField searches a record depth-first for the child annotated name.
// Unannotated children are never matched.
func FindField(record *Node, name string) *Node {
	for _, f := range Fields(record) {
		if f.Annot != "" && f.Annot == name {
			return f
		}
	}
	return nil
}

// Branch is the position of a variant case inside nested binary Or nodes.
// Path holds one entry per Or level, false for Left and true for Right.
type Branch struct {
	Node *Node
	Path []bool
}

// FindVariant searches an Or tree depth-first for the case annotated name.
// Unannotated nested Or nodes are descended into; annotated ones are cases.
func FindVariant(variant *Node, name string) (Branch, bool) {
	if variant.Kind != KindOr {
		return Branch{}, false
	}
	for i, child := range variant.Args {
		right := i == 1
		if child.Annot == name {
			return Branch{Node: child, Path: []bool{right}}, true
		}
		if child.Kind == KindOr && child.Annot == "" {
			if b, ok := FindVariant(child, name); ok {
				b.Path = append([]bool{right}, b.Path...)
				return b, true
			}
		}
	}
	return Branch{}, false
}
