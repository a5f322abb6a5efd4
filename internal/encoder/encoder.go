// Package encoder turns JSON call parameters into the positional argument
// list a contract entry point expects, driven by the entry point's schema.
package encoder

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"tezos-gateway/internal/schema"
	"tezos-gateway/pkg/errno"
)

// Arguments is the ordered, flattened argument list of one call.
type Arguments []any

// MapEntry is one (key, value) pair of an encoded map argument. Key and
// Value hold the single encoded element when the sub-encoding produced one
// argument, and the whole Arguments otherwise.
type MapEntry struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// MapArgument keeps entries in insertion order.
type MapArgument []MapEntry

// Encode encodes raw JSON parameters against node. A nil or empty raw value
// stands for absent parameters and yields the zero-arity placeholder.
func Encode(node *schema.Node, raw json.RawMessage) (Arguments, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Arguments{0}, nil
	}
	params, err := Decode(raw)
	if err != nil {
		return nil, errno.ErrUnknownParameterType.Withf("parameters are not valid JSON: %v", err)
	}
	return EncodeValue(node, params)
}

// Decode parses JSON keeping numbers as json.Number so large integers are
// never rounded through float64.
func Decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeValue encodes an already decoded JSON value.
func EncodeValue(node *schema.Node, params any) (Arguments, error) {
	if node.Kind == schema.KindOption {
		if params == nil {
			return Arguments{nil}, nil
		}
		return EncodeValue(node.Elem(), params)
	}
	if node.Kind == schema.KindMap {
		items, ok := params.([]any)
		if !ok {
			return nil, errno.ErrInvalidMapStructureParams.Withf("map parameters must be an array of {key, value} objects, got %T", params)
		}
		return encodeMap(node, items)
	}

	switch v := params.(type) {
	case []any:
		if node.Kind == schema.KindList {
			return encodeList(node, v)
		}
		return nil, errno.ErrUnknownParameterType.Withf("array given for a %s parameter", node.Kind)
	case map[string]any:
		switch node.Kind {
		case schema.KindOr:
			return encodeVariant(node, v)
		case schema.KindPair:
			return encodeRecord(node, v)
		}
		return nil, errno.ErrUnknownParameterType.Withf("object given for a %s parameter", node.Kind)
	default:
		return Arguments{v}, nil
	}
}

func encodeList(node *schema.Node, items []any) (Arguments, error) {
	args := Arguments{}
	for _, item := range items {
		encoded, err := EncodeValue(node.Elem(), item)
		if err != nil {
			return nil, err
		}
		args = append(args, encoded...)
	}
	return args, nil
}

func encodeMap(node *schema.Node, items []any) (Arguments, error) {
	m := MapArgument{}
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok || len(record) != 2 {
			return nil, errno.ErrInvalidMapStructureParams.Withf("map element %d must be an object with exactly the keys key and value", i)
		}
		rawKey, hasKey := record["key"]
		rawValue, hasValue := record["value"]
		if !hasKey || !hasValue {
			return nil, errno.ErrInvalidMapStructureParams.Withf("map element %d must be an object with exactly the keys key and value", i)
		}

		key, err := EncodeValue(node.Key(), rawKey)
		if err != nil {
			return nil, err
		}
		value, err := EncodeValue(node.Value(), rawValue)
		if err != nil {
			return nil, err
		}
		m = m.insert(single(key), single(value))
	}
	return Arguments{m}, nil
}

func (m MapArgument) insert(key, value any) MapArgument {
	for i := range m {
		if reflect.DeepEqual(m[i].Key, key) {
			m[i].Value = value
			return m
		}
	}
	return append(m, MapEntry{Key: key, Value: value})
}

func single(args Arguments) any {
	if len(args) == 1 {
		return args[0]
	}
	return args
}

func encodeVariant(node *schema.Node, obj map[string]any) (Arguments, error) {
	if len(obj) != 1 {
		return nil, errno.ErrInvalidVariantObject.Withf("variant object must have exactly one key, got %d", len(obj))
	}
	var tag string
	for k := range obj {
		tag = k
	}

	branch, ok := schema.FindVariant(node, tag)
	if !ok {
		return nil, errno.ErrInvalidParameterName.Withf("%q is not a case of this variant", tag)
	}
	encoded, err := EncodeValue(branch.Node, obj[tag])
	if err != nil {
		return nil, err
	}
	return append(Arguments{tag}, encoded...), nil
}

func encodeRecord(node *schema.Node, obj map[string]any) (Arguments, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if schema.FindField(node, k) == nil {
			return nil, errno.ErrMissingParameter.Withf("the schema has no parameter named %q", k)
		}
	}

	args := Arguments{}
	for _, field := range schema.Fields(node) {
		value, present := obj[field.Annot]
		if !present {
			continue
		}
		encoded, err := EncodeValue(field, value)
		if err != nil {
			return nil, err
		}
		args = append(args, encoded...)
	}
	return args, nil
}
