// Package globalid encodes entity ids the way the ticket JSON payloads store
// them: base64 of "<TypeName>Node:<pk>".
package globalid

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	ErrInvalidID = errors.New("invalid global id")
	// ErrNotEncoded is returned with the input unchanged when it is not base64.
	ErrNotEncoded = errors.New("id is not a global id")
)

const nodeSuffix = "Node"

// Encode builds the global id of pk. typeName may already carry the Node suffix.
func Encode(pk, typeName string) string {
	if !strings.HasSuffix(typeName, nodeSuffix) {
		typeName += nodeSuffix
	}
	return base64.StdEncoding.EncodeToString([]byte(typeName + ":" + pk))
}

// Decode returns the primary key inside s.
func Decode(s string) (string, error) {
	_, pk, err := DecodeTyped(s)
	return pk, err
}

// DecodeTyped returns the type name (without the Node suffix) and the primary key.
// Raw, non-base64 input is returned as the pk together with ErrNotEncoded.
func DecodeTyped(s string) (string, string, error) {
	if s == "" {
		return "", "", ErrInvalidID
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return "", s, ErrNotEncoded
	}

	typeName, pk, ok := strings.Cut(string(raw), ":")
	if !ok || typeName == "" || pk == "" {
		return "", s, ErrNotEncoded
	}
	return strings.TrimSuffix(typeName, nodeSuffix), pk, nil
}

// Resolve decodes s when it is a global id and returns s unchanged otherwise.
func Resolve(s string) string {
	if pk, err := Decode(s); err == nil {
		return pk
	}
	return s
}
