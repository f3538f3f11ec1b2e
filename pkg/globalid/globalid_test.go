package globalid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "SW5kaXZpZHVhbE5vZGU6aW5kLTE=", Encode("ind-1", "Individual"))
	assert.Equal(t, Encode("ind-1", "Individual"), Encode("ind-1", "IndividualNode"))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		pk       string
		typeName string
	}{
		{pk: "1b5a1d2e-7c1f-4d0a-9a43-5f7c8c2a4e11", typeName: "Household"},
		{pk: "42", typeName: "Document"},
		{pk: "a:b", typeName: "BankAccountInfo"},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			typeName, pk, err := DecodeTyped(Encode(tt.pk, tt.typeName))
			require.NoError(t, err)
			assert.Equal(t, tt.typeName, typeName)
			assert.Equal(t, tt.pk, pk)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrInvalidID)

	pk, err := Decode("not base64!")
	assert.ErrorIs(t, err, ErrNotEncoded)
	assert.Equal(t, "not base64!", pk)

	// valid base64 but no type prefix
	pk, err = Decode("aGVsbG8=")
	assert.ErrorIs(t, err, ErrNotEncoded)
	assert.Equal(t, "aGVsbG8=", pk)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "hh-1", Resolve(Encode("hh-1", "Household")))
	assert.Equal(t, "hh-1", Resolve("hh-1"))
}
