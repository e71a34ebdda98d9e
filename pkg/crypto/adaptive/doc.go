// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
//
// AES-256-GCM is chosen where Go uses hardware AES (amd64, arm64) and
// ChaCha20-Poly1305 elsewhere. Seal and Open add a self-describing
// envelope, so a blob written on one machine opens on another whatever
// cipher it selected.
//
//	c, err := adaptive.New(key)
//	blob, err := adaptive.Seal(c, plaintext, aad)
//	plaintext, err := adaptive.Open(key, blob, aad)
package adaptive
