package michelson

import (
	"fmt"

	"tezos-gateway/internal/schema"
)

// ParseType converts a Micheline type expression into a call schema. n-ary
// pairs are right-combed; set is read as a list and big_map as a map.
func ParseType(t Node) (*schema.Node, error) {
	if t.IsSeq || t.Prim == "" {
		return nil, fmt.Errorf("michelson: expected a type primitive")
	}

	var (
		out *schema.Node
		err error
	)
	switch t.Prim {
	case "pair":
		out, err = parsePair(t.Args)
	case "or":
		out, err = parseBinary(t, schema.Or)
	case "list", "set":
		out, err = parseUnary(t, schema.List)
	case "option":
		out, err = parseUnary(t, schema.Option)
	case "map", "big_map":
		out, err = parseBinary(t, schema.Map)
	default:
		out = schema.Primitive(t.Prim)
	}
	if err != nil {
		return nil, err
	}
	out.Prim = t.Prim
	out.Annot = t.FieldAnnot()
	return out, nil
}

func parsePair(args []Node) (*schema.Node, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("michelson: pair needs at least 2 arguments, got %d", len(args))
	}
	left, err := ParseType(args[0])
	if err != nil {
		return nil, err
	}
	var right *schema.Node
	if len(args) == 2 {
		right, err = ParseType(args[1])
	} else {
		right, err = parsePair(args[1:])
	}
	if err != nil {
		return nil, err
	}
	return schema.Pair(left, right), nil
}

func parseUnary(t Node, build func(*schema.Node) *schema.Node) (*schema.Node, error) {
	if len(t.Args) != 1 {
		return nil, fmt.Errorf("michelson: %s needs 1 argument, got %d", t.Prim, len(t.Args))
	}
	inner, err := ParseType(t.Args[0])
	if err != nil {
		return nil, err
	}
	return build(inner), nil
}

func parseBinary(t Node, build func(l, r *schema.Node) *schema.Node) (*schema.Node, error) {
	if len(t.Args) != 2 {
		return nil, fmt.Errorf("michelson: %s needs 2 arguments, got %d", t.Prim, len(t.Args))
	}
	left, err := ParseType(t.Args[0])
	if err != nil {
		return nil, err
	}
	right, err := ParseType(t.Args[1])
	if err != nil {
		return nil, err
	}
	return build(left, right), nil
}
