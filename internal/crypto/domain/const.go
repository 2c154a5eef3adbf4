package domain

// Algorithm represents the AEAD algorithm used to seal key blobs.
//
// Both supported algorithms provide Authenticated Encryption with Associated
// Data, so a sealed blob cannot be read or modified without the sealing key.
// Pick AESGCM on CPUs with AES-NI; ChaCha20 performs better without hardware
// acceleration. Both give 256-bit security.
type Algorithm string

const (
	// AESGCM is AES-256-GCM: 32-byte key, 12-byte nonce, 16-byte tag.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305: 32-byte key, 12-byte nonce, 16-byte tag,
	// constant-time in software.
	ChaCha20 Algorithm = "chacha20-poly1305"
)
