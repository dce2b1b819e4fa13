package rum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"b": 1,
		"a": map[string]any{"z": true, "y": nil},
		"c": []any{"x", 2.5},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":null,"z":true},"b":1,"c":["x",2.5]}`, string(out))
}

func TestMarshalCanonical_Structs(t *testing.T) {
	doc := &ResourceDocument{
		Envelope: Envelope{Date: 1700000000000, Application: Application{ID: "app"}},
		Type:     string(KindResource),
	}

	first, err := MarshalCanonical(doc)
	require.NoError(t, err)
	second, err := MarshalCanonical(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"date":1700000000000`)
	assert.Contains(t, string(first), `"application":{"id":"app"}`)
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"url": "https://x.test/?a=1&b=<2>"})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://x.test/?a=1&b=<2>"}`, string(out))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	composed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as the surrogate 0xD83D, below U+FB01, although its
	// UTF-8 bytes sort after.
	out, err := MarshalCanonical(map[string]any{"ﬁ": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"ﬁ\":1}", string(out))
}

func TestMarshalCanonical_LargeIntegersKeepPrecision(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"nano": int64(1704067200123456789)})
	require.NoError(t, err)
	assert.Equal(t, `{"nano":1704067200123456789}`, string(out))
}

func TestMarshalCanonical_Unsupported(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal canonical")
}
