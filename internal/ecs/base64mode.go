package ecs

import "github.com/ashgrove/ecsruntime/internal/codec"

// SerializeBase64 returns the full binary snapshot of w, base64-encoded,
// for transport over text-only channels.
func SerializeBase64(w *World) string {
	return codec.Encode(SerializeFull(w))
}

// DeserializeBase64 decodes s and applies it as a full snapshot to w.
func DeserializeBase64(w *World, s string) error {
	buf, err := codec.Decode(s)
	if err != nil {
		return err
	}
	return DeserializeFull(w, buf)
}
