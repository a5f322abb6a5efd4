package michelson

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"tezos-gateway/internal/schema"
	"tezos-gateway/pkg/errno"
)

// BuildValue renders decoded JSON parameters as a Micheline value of the
// given schema. Field and variant matching follows the argument encoder.
func BuildValue(node *schema.Node, v any) (Node, error) {
	switch node.Kind {
	case schema.KindOption:
		if v == nil {
			return Prim("None"), nil
		}
		inner, err := BuildValue(node.Elem(), v)
		if err != nil {
			return Node{}, err
		}
		return Prim("Some", inner), nil

	case schema.KindPair:
		obj, ok := v.(map[string]any)
		if !ok {
			return Node{}, errno.ErrUnknownParameterType.Withf("expected an object for record %q", node.Annot)
		}
		return buildRecord(node, obj)

	case schema.KindOr:
		obj, ok := v.(map[string]any)
		if !ok || len(obj) != 1 {
			return Node{}, errno.ErrInvalidVariantObject.Withf("variant object must have exactly one key, got %d", len(obj))
		}
		for tag, value := range obj {
			branch, found := schema.FindVariant(node, tag)
			if !found {
				return Node{}, errno.ErrInvalidParameterName.Withf("%q is not a case of this variant", tag)
			}
			out, err := BuildValue(branch.Node, value)
			if err != nil {
				return Node{}, err
			}
			for i := len(branch.Path) - 1; i >= 0; i-- {
				if branch.Path[i] {
					out = Prim("Right", out)
				} else {
					out = Prim("Left", out)
				}
			}
			return out, nil
		}

	case schema.KindList:
		items, ok := v.([]any)
		if !ok {
			return Node{}, errno.ErrUnknownParameterType.Withf("expected an array for %s", node.Prim)
		}
		out := make([]Node, 0, len(items))
		for _, item := range items {
			elem, err := BuildValue(node.Elem(), item)
			if err != nil {
				return Node{}, err
			}
			out = append(out, elem)
		}
		if node.Prim == "set" {
			sortNodes(out, func(n Node) Node { return n })
		}
		return Seq(out...), nil

	case schema.KindMap:
		return buildMap(node, v)
	}
	return buildPrimitive(node, v)
}

func buildRecord(node *schema.Node, obj map[string]any) (Node, error) {
	args := make([]Node, 0, 2)
	for _, child := range node.Args {
		if child.Kind == schema.KindPair && child.Annot == "" {
			nested, err := buildRecord(child, obj)
			if err != nil {
				return Node{}, err
			}
			args = append(args, nested)
			continue
		}
		value, ok := obj[child.Annot]
		if !ok {
			if child.Kind == schema.KindOption {
				args = append(args, Prim("None"))
				continue
			}
			return Node{}, errno.ErrMissingParameter.Withf("parameter %q is missing", child.Annot)
		}
		built, err := BuildValue(child, value)
		if err != nil {
			return Node{}, err
		}
		args = append(args, built)
	}
	return Prim("Pair", args...), nil
}

func buildMap(node *schema.Node, v any) (Node, error) {
	items, ok := v.([]any)
	if !ok {
		return Node{}, errno.ErrInvalidMapStructureParams
	}
	elts := make([]Node, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		record, ok := item.(map[string]any)
		_, hasKey := record["key"]
		_, hasValue := record["value"]
		if !ok || len(record) != 2 || !hasKey || !hasValue {
			return Node{}, errno.ErrInvalidMapStructureParams.Withf("map element %d must be an object with exactly the keys key and value", i)
		}
		key, err := BuildValue(node.Key(), record["key"])
		if err != nil {
			return Node{}, err
		}
		value, err := BuildValue(node.Value(), record["value"])
		if err != nil {
			return Node{}, err
		}
		// a repeated key keeps its first position and takes the last value
		id, err := json.Marshal(key)
		if err != nil {
			return Node{}, err
		}
		if at, dup := seen[string(id)]; dup {
			elts[at] = Prim("Elt", key, value)
			continue
		}
		seen[string(id)] = len(elts)
		elts = append(elts, Prim("Elt", key, value))
	}
	// maps are serialized with strictly increasing keys
	sortNodes(elts, func(n Node) Node { return n.Args[0] })
	return Seq(elts...), nil
}

func sortNodes(nodes []Node, key func(Node) Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return less(key(nodes[i]), key(nodes[j]))
	})
}

func less(a, b Node) bool {
	if a.kind == kindInt && b.kind == kindInt {
		x, okx := new(big.Int).SetString(a.Int, 10)
		y, oky := new(big.Int).SetString(b.Int, 10)
		if okx && oky {
			return x.Cmp(y) < 0
		}
	}
	if a.kind == kindString && b.kind == kindString {
		return a.String < b.String
	}
	if a.kind == kindBytes && b.kind == kindBytes {
		return a.Bytes < b.Bytes
	}
	return false
}

func buildPrimitive(node *schema.Node, v any) (Node, error) {
	switch node.Prim {
	case "int", "nat", "mutez":
		n, err := toInteger(v)
		if err != nil {
			return Node{}, errno.ErrUnknownParameterType.Withf("%s parameter %q: %v", node.Prim, node.Annot, err)
		}
		if node.Prim != "int" && n.Sign() < 0 {
			return Node{}, errno.ErrUnknownParameterType.Withf("%s parameter %q must not be negative", node.Prim, node.Annot)
		}
		return Int(n.String()), nil

	case "bool":
		switch b := v.(type) {
		case bool:
			return boolNode(b), nil
		case string:
			if b == "true" || b == "false" {
				return boolNode(b == "true"), nil
			}
		}
		return Node{}, errno.ErrUnknownParameterType.Withf("bool parameter %q must be true or false", node.Annot)

	case "unit":
		return Prim("Unit"), nil

	case "bytes":
		s, ok := v.(string)
		if !ok {
			return Node{}, errno.ErrUnknownParameterType.Withf("bytes parameter %q must be a hex string", node.Annot)
		}
		s = strings.TrimPrefix(s, "0x")
		if _, err := hex.DecodeString(s); err != nil {
			return Node{}, errno.ErrUnknownParameterType.Withf("bytes parameter %q must be a hex string", node.Annot)
		}
		return Bytes(s), nil

	case "timestamp":
		if s, ok := v.(string); ok {
			if _, err := toInteger(s); err != nil {
				return String(s), nil
			}
		}
		n, err := toInteger(v)
		if err != nil {
			return Node{}, errno.ErrUnknownParameterType.Withf("timestamp parameter %q: %v", node.Annot, err)
		}
		return Int(n.String()), nil
	}

	switch s := v.(type) {
	case string:
		return String(s), nil
	case json.Number:
		return String(s.String()), nil
	}
	return Node{}, errno.ErrUnknownParameterType.Withf("%s parameter %q must be a string", node.Prim, node.Annot)
}

func boolNode(b bool) Node {
	if b {
		return Prim("True")
	}
	return Prim("False")
}

func toInteger(v any) (*big.Int, error) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = x
	case float64:
		s = big.NewFloat(x).Text('f', 0)
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	default:
		return nil, fmt.Errorf("expected an integer, got %T", v)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return n, nil
}
