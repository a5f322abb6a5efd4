// Package michelson holds the Micheline JSON representation used by the
// Tezos node RPC, the parser from Micheline types to call schemas, and the
// builder from JSON parameters to Micheline values.
package michelson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is a Micheline expression. Exactly one of Prim, Int, String, Bytes
// or Seq (IsSeq) is meaningful.
type Node struct {
	Prim   string
	Args   []Node
	Annots []string
	Int    string
	String string
	Bytes  string
	Seq    []Node
	IsSeq  bool

	kind literalKind
}

type literalKind int

const (
	kindPrim literalKind = iota
	kindInt
	kindString
	kindBytes
)

func Prim(prim string, args ...Node) Node {
	return Node{Prim: prim, Args: args}
}

func Int(v string) Node    { return Node{Int: v, kind: kindInt} }
func String(v string) Node { return Node{String: v, kind: kindString} }
func Bytes(v string) Node  { return Node{Bytes: v, kind: kindBytes} }

func Seq(items ...Node) Node {
	if items == nil {
		items = []Node{}
	}
	return Node{Seq: items, IsSeq: true}
}

type primJSON struct {
	Prim   string   `json:"prim"`
	Args   []Node   `json:"args,omitempty"`
	Annots []string `json:"annots,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsSeq {
		if n.Seq == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.Seq)
	}
	switch n.kind {
	case kindInt:
		return json.Marshal(map[string]string{"int": n.Int})
	case kindString:
		return json.Marshal(map[string]string{"string": n.String})
	case kindBytes:
		return json.Marshal(map[string]string{"bytes": n.Bytes})
	}
	return json.Marshal(primJSON{Prim: n.Prim, Args: n.Args, Annots: n.Annots})
}

func (n *Node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []Node
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*n = Seq(items...)
		return nil
	}

	var raw struct {
		Prim   *string  `json:"prim"`
		Args   []Node   `json:"args"`
		Annots []string `json:"annots"`
		Int    *string  `json:"int"`
		String *string  `json:"string"`
		Bytes  *string  `json:"bytes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Prim != nil:
		*n = Node{Prim: *raw.Prim, Args: raw.Args, Annots: raw.Annots}
	case raw.Int != nil:
		*n = Int(*raw.Int)
	case raw.String != nil:
		*n = String(*raw.String)
	case raw.Bytes != nil:
		*n = Bytes(*raw.Bytes)
	default:
		return fmt.Errorf("michelson: unrecognised expression %s", string(data))
	}
	return nil
}

// FieldAnnot returns the first %annotation without its sigil.
func (n Node) FieldAnnot() string {
	for _, a := range n.Annots {
		if len(a) > 1 && a[0] == '%' {
			return a[1:]
		}
	}
	return ""
}
