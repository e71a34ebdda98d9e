package adaptive

import (
	"bytes"
	"errors"
)

// envelopeMagic opens every sealed blob; the byte after it names the cipher.
var envelopeMagic = []byte("TSENC")

var cipherIDs = map[CipherType]byte{
	CipherAESGCM:   1,
	CipherChaCha20: 2,
}

// ErrNotSealed is returned by Open for input without an envelope.
var ErrNotSealed = errors.New("adaptive: input is not a sealed envelope")

// Seal encrypts plaintext with c and wraps it in an envelope recording
// the cipher type.
func Seal(c Cipher, plaintext, additionalData []byte) ([]byte, error) {
	id, ok := cipherIDs[c.Type()]
	if !ok {
		return nil, errors.New("adaptive: cipher type has no envelope id")
	}
	ct, err := c.Encrypt(plaintext, additionalData)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(envelopeMagic)+1+len(ct))
	out = append(out, envelopeMagic...)
	out = append(out, id)
	return append(out, ct...), nil
}

// IsSealed reports whether blob starts with an envelope header.
func IsSealed(blob []byte) bool {
	return len(blob) > len(envelopeMagic) && bytes.HasPrefix(blob, envelopeMagic)
}

// Open decrypts a blob produced by Seal with the same key.
func Open(key, blob, additionalData []byte) ([]byte, error) {
	if !IsSealed(blob) {
		return nil, ErrNotSealed
	}
	id := blob[len(envelopeMagic)]
	for typ, tid := range cipherIDs {
		if tid != id {
			continue
		}
		c, err := NewWithType(key, typ)
		if err != nil {
			return nil, err
		}
		return c.Decrypt(blob[len(envelopeMagic)+1:], additionalData)
	}
	return nil, errors.New("adaptive: unknown envelope cipher id")
}
