package encoder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-gateway/internal/schema"
	"tezos-gateway/pkg/errno"
)

func transferSchema() *schema.Node {
	return schema.Pair(
		schema.Primitive("address").As("destination"),
		schema.Primitive("nat").As("tokens"),
	)
}

func TestEncode_UndefinedParamsYieldPlaceholder(t *testing.T) {
	args, err := Encode(schema.Primitive("unit"), nil)
	require.NoError(t, err)
	assert.Equal(t, Arguments{0}, args)
}

func TestEncode_Scalar(t *testing.T) {
	args, err := Encode(schema.Primitive("string"), json.RawMessage(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{"hello"}, args)

	args, err = Encode(schema.Primitive("nat"), json.RawMessage(`123456789012345678901234567890`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{json.Number("123456789012345678901234567890")}, args)
}

func TestEncode_RecordUsesSchemaOrder(t *testing.T) {
	record := schema.Pair(
		schema.Primitive("nat").As("A"),
		schema.Pair(schema.Primitive("nat").As("B"), schema.Primitive("nat").As("C")),
	)

	args, err := Encode(record, json.RawMessage(`{"C":3,"A":1,"B":2}`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{json.Number("1"), json.Number("2"), json.Number("3")}, args)
}

func TestEncode_RecordUnknownKey(t *testing.T) {
	_, err := Encode(transferSchema(), json.RawMessage(`{"tokens":1,"destinaton":"tz1"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrMissingParameter)
	assert.Contains(t, err.Error(), "destinaton")
}

func TestEncode_VariantArity(t *testing.T) {
	variant := schema.Or(schema.Primitive("nat").As("increment"), schema.Primitive("nat").As("decrement"))

	testCases := []struct {
		name string
		raw  string
	}{
		{"two known keys", `{"increment":1,"decrement":2}`},
		{"two unknown keys", `{"x":1,"y":2}`},
		{"mixed keys", `{"increment":1,"y":2}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(variant, json.RawMessage(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, errno.ErrInvalidVariantObject)
			assert.Contains(t, err.Error(), "got 2")
		})
	}
}

func TestEncode_VariantNestedBranch(t *testing.T) {
	variant := schema.Or(
		schema.Or(schema.Primitive("nat").As("increment"), schema.Primitive("nat").As("decrement")),
		schema.Primitive("unit").As("reset"),
	)

	args, err := Encode(variant, json.RawMessage(`{"decrement":5}`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{"decrement", json.Number("5")}, args)

	_, err = Encode(variant, json.RawMessage(`{"multiply":5}`))
	assert.ErrorIs(t, err, errno.ErrInvalidParameterName)
}

func TestEncode_Option(t *testing.T) {
	opt := schema.Option(schema.Primitive("nat"))

	args, err := Encode(opt, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{nil}, args)

	args, err = Encode(opt, json.RawMessage(`7`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{json.Number("7")}, args)
}

func TestEncode_ListFlattens(t *testing.T) {
	list := schema.List(schema.Pair(schema.Primitive("address").As("to_"), schema.Primitive("nat").As("amount")))

	args, err := Encode(list, json.RawMessage(`[{"amount":1,"to_":"tz1a"},{"to_":"tz1b","amount":2}]`))
	require.NoError(t, err)
	assert.Equal(t, Arguments{"tz1a", json.Number("1"), "tz1b", json.Number("2")}, args)
}

func TestEncode_Map(t *testing.T) {
	m := schema.Map(schema.Primitive("string"), schema.Primitive("nat"))

	args, err := Encode(m, json.RawMessage(`[{"key":"a","value":1},{"key":"b","value":2},{"key":"a","value":3}]`))
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, MapArgument{
		{Key: "a", Value: json.Number("3")},
		{Key: "b", Value: json.Number("2")},
	}, args[0])
}

func TestEncode_MapShape(t *testing.T) {
	record := schema.Pair(
		schema.Map(schema.Primitive("string"), schema.Primitive("nat")).As("metadata"),
		schema.Primitive("nat").As("id"),
	)

	testCases := []struct {
		name string
		raw  string
	}{
		{"missing value key", `{"metadata":[{"name":"x"}]}`},
		{"only key", `{"metadata":[{"key":"x"}]}`},
		{"extra key", `{"metadata":[{"key":"x","value":1,"other":2}]}`},
		{"wrong keys", `{"metadata":[{"name":"x","data":1}]}`},
		{"scalar element", `{"metadata":["x"]}`},
		{"second element bad", `{"metadata":[{"key":"x","value":1},{"value":2}]}`},
		{"string instead of array", `{"metadata":"x"}`},
		{"number instead of array", `{"metadata":7}`},
		{"single object instead of array", `{"metadata":{"key":"a","value":1}}`},
		{"null", `{"metadata":null}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(record, json.RawMessage(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, errno.ErrInvalidMapStructureParams)
		})
	}
}

func TestEncode_UnknownParameterType(t *testing.T) {
	_, err := Encode(schema.Primitive("nat"), json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, errno.ErrUnknownParameterType)

	_, err = Encode(schema.List(schema.Primitive("nat")), json.RawMessage(`{"a":1}`))
	assert.ErrorIs(t, err, errno.ErrUnknownParameterType)

	_, err = Encode(transferSchema(), json.RawMessage(`["tz1", 1]`))
	assert.ErrorIs(t, err, errno.ErrUnknownParameterType)
}

func TestEncode_Deterministic(t *testing.T) {
	record := schema.Pair(
		schema.Or(schema.Primitive("nat").As("a"), schema.Primitive("string").As("b")).As("choice"),
		schema.Pair(
			schema.Map(schema.Primitive("string"), schema.List(schema.Primitive("nat"))).As("m"),
			schema.Option(schema.Primitive("address")).As("owner"),
		),
	)

	inputs := []string{
		`{"owner":null,"m":[{"key":"k","value":[1,2]}],"choice":{"b":"x"}}`,
		`{"choice":{"a":1,"b":"x"}}`,
		`{"m":[{"key":"k"}]}`,
		`{"zzz":1,"yyy":2}`,
		`[1]`,
	}
	for _, in := range inputs {
		first, firstErr := Encode(record, json.RawMessage(in))
		second, secondErr := Encode(record, json.RawMessage(in))
		assert.Equal(t, first, second, in)
		if firstErr == nil {
			assert.NoError(t, secondErr, in)
			continue
		}
		require.Error(t, secondErr, in)
		assert.Equal(t, errno.Lookup(firstErr).Name, errno.Lookup(secondErr).Name, in)
		assert.Equal(t, firstErr.Error(), secondErr.Error(), in)
	}
}
