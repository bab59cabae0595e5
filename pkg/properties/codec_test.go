package properties

import (
	"fmt"
	"testing"

	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
		want  string
	}{
		{
			name:  "empty",
			props: Properties{},
			want:  "",
		},
		{
			name:  "nil",
			props: nil,
			want:  "",
		},
		{
			name:  "single",
			props: Properties{"key": "{ value: valueTest }"},
			want:  "key=eyB2YWx1ZTogdmFsdWVUZXN0IH0=",
		},
		{
			name:  "sorted and comma joined",
			props: Properties{"b": "2", "a": "1"},
			want:  "a=MQ==,b=Mg==",
		},
		{
			name:  "latin1 value uses single bytes",
			props: Properties{"k": "é"},
			want:  "k=6Q==",
		},
		{
			name:  "empty value",
			props: Properties{"k": ""},
			want:  "k=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_UnrepresentableValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "cjk", value: "{ value: value歲 }"},
		{name: "emoji", value: "🙂"},
		{name: "invalid utf8", value: string([]byte{0xff, 0xfe})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(Properties{"key": tt.value})
			require.Error(t, err)
			assert.True(t, fserrors.Is(err, fserrors.ErrInvalidPropertyValue), "got %v", err)
		})
	}
}

func TestEncode_InvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "key separator", key: "a=b"},
		{name: "entry separator", key: "c,d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(Properties{"ok": "1", tt.key: "value"})
			require.Error(t, err)
			assert.True(t, fserrors.Is(err, fserrors.ErrInvalidPropertyValue), "got %v", err)
			assert.Contains(t, err.Error(), fmt.Sprintf("%q", tt.key))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Properties
	}{
		{name: "empty", header: "", want: Properties{}},
		{name: "single", header: "key=eyB2YWx1ZTogdmFsdWVUZXN0IH0=", want: Properties{"key": "{ value: valueTest }"}},
		{name: "multiple", header: "a=MQ==,b=Mg==", want: Properties{"a": "1", "b": "2"}},
		{name: "latin1", header: "k=6Q==", want: Properties{"k": "é"}},
		{name: "empty value", header: "k=", want: Properties{"k": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing equals", header: "keyvalue"},
		{name: "empty leading segment", header: ",a=MQ=="},
		{name: "empty middle segment", header: "a=MQ==,,b=Mg=="},
		{name: "trailing comma", header: "a=MQ==,"},
		{name: "malformed base64", header: "a=not*base64"},
		{name: "truncated base64", header: "a=MQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.header)
			require.Error(t, err)
			assert.True(t, fserrors.Is(err, fserrors.ErrInvalidFormat), "got %v", err)
		})
	}
}

func TestDecode_WrapsBase64Failure(t *testing.T) {
	_, err := Decode("a=%%%")
	require.Error(t, err)

	var fe *fserrors.Error
	require.ErrorAs(t, err, &fe)
	assert.NotNil(t, fe.Err, "base64 failure should be kept as the cause")
}

func TestRoundTrip(t *testing.T) {
	inputs := []Properties{
		{"key": "{ value: value }"},
		{"a": "1", "b": "two", "c": "ÿ þ ß"},
		{"padding": "x", "padding2": "xy", "padding3": "xyz"},
		{"equals": "a=b=c", "spaces": "   leading and trailing   "},
		{"control": "\t\n\x00\x7f "},
	}

	for _, props := range inputs {
		encoded, err := Encode(props)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, props, decoded)
	}
}
