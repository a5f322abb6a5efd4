// Package schema describes the argument shape of a contract entry point as a
// closed tagged union of node kinds.
package schema

import "fmt"

type Kind int

const (
	KindPrimitive Kind = iota
	KindPair
	KindOr
	KindList
	KindMap
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindPair:
		return "pair"
	case KindOr:
		return "or"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindOption:
		return "option"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is one element of a CallSchema tree.
//
//	Pair, Or:     Args = [left, right]
//	List, Option: Args = [element]
//	Map:          Args = [key, value]
//
// Prim keeps the Michelson type name (nat, address, set, big_map, ...) so
// payload builders can render values; Annot is the field name without '%'.
type Node struct {
	Kind  Kind    `json:"kind"`
	Prim  string  `json:"prim,omitempty"`
	Annot string  `json:"annot,omitempty"`
	Args  []*Node `json:"args,omitempty"`
}

func Primitive(prim string) *Node {
	return &Node{Kind: KindPrimitive, Prim: prim}
}

func Pair(left, right *Node) *Node {
	return &Node{Kind: KindPair, Prim: "pair", Args: []*Node{left, right}}
}

func Or(left, right *Node) *Node {
	return &Node{Kind: KindOr, Prim: "or", Args: []*Node{left, right}}
}

func List(elem *Node) *Node {
	return &Node{Kind: KindList, Prim: "list", Args: []*Node{elem}}
}

func Map(key, value *Node) *Node {
	return &Node{Kind: KindMap, Prim: "map", Args: []*Node{key, value}}
}

func Option(inner *Node) *Node {
	return &Node{Kind: KindOption, Prim: "option", Args: []*Node{inner}}
}

// As returns a copy of n annotated with name.
func (n *Node) As(name string) *Node {
	c := *n
	c.Annot = name
	return &c
}

func (n *Node) Left() *Node  { return n.Args[0] }
func (n *Node) Right() *Node { return n.Args[1] }
func (n *Node) Elem() *Node  { return n.Args[0] }
func (n *Node) Key() *Node   { return n.Args[0] }
func (n *Node) Value() *Node { return n.Args[1] }
