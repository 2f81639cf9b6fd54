// Package codec provides the BASE64 boundary for transporting binary
// snapshots over text-only channels. This is intentionally a thin
// standard-library wrapper: encoding/base64 is an external-collaborator
// boundary, not a domain concern any third-party library addresses.
package codec

import "encoding/base64"

// Encode returns the standard base64 encoding of buf.
func Encode(buf []byte) string {
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
