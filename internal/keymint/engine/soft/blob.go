package soft

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	"github.com/allisson/keymint/internal/keymint/domain"
)

// Key blobs are sealed with an AEAD cipher keyed from the root sealing key.
//
// Wire layout:
//
//	[0]    blob format version
//	[1:5]  OS version the blob was sealed under (little endian)
//	[5:9]  OS patchlevel (little endian)
//	[9:13] vendor patchlevel (little endian)
//	[13]   nonce length
//	[...]  nonce
//	[...]  ciphertext (includes the AEAD tag)
//
// The header travels in the clear so version comparisons work without the
// sealing key, but it is bound into the AEAD associated data together with
// the caller's APPLICATION_ID and APPLICATION_DATA. Any change to the header
// or a mismatched app binding fails authentication on open.
const blobFormatVersion = 1

const blobHeaderSize = 13

// blobPayload is the sealed content of a key blob.
type blobPayload struct {
	Algorithm   domain.Algorithm        `json:"algorithm"`
	KeyMaterial []byte                  `json:"key_material"`
	SwEnforced  domain.AuthorizationSet `json:"sw_enforced"`
	HwEnforced  domain.AuthorizationSet `json:"hw_enforced,omitempty"`
}

// blobHeader carries the system state a blob was sealed under.
type blobHeader struct {
	OsVersion        uint32
	OsPatchlevel     uint32
	VendorPatchlevel uint32
}

func (h blobHeader) encode() []byte {
	buf := make([]byte, blobHeaderSize)
	buf[0] = blobFormatVersion
	binary.LittleEndian.PutUint32(buf[1:5], h.OsVersion)
	binary.LittleEndian.PutUint32(buf[5:9], h.OsPatchlevel)
	binary.LittleEndian.PutUint32(buf[9:13], h.VendorPatchlevel)
	return buf
}

// blobAad builds the associated data binding a blob to its header and to the
// caller's application id/data. A zero byte separates the fields so moving
// bytes between them cannot produce the same AAD.
func blobAad(header []byte, params domain.AuthorizationSet) []byte {
	appID, _ := params.GetBlob(domain.TagApplicationID)
	appData, _ := params.GetBlob(domain.TagApplicationData)

	aad := make([]byte, 0, len(header)+len(appID)+len(appData)+2)
	aad = append(aad, header...)
	aad = append(aad, 0)
	aad = append(aad, appID...)
	aad = append(aad, 0)
	aad = append(aad, appData...)
	return aad
}

// sealBlob serializes and seals a payload under the engine's current system
// state, bound to the app id/data in hiddenParams.
func (e *Engine) sealBlob(payload *blobPayload, hiddenParams domain.AuthorizationSet) ([]byte, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize key blob payload: %w", err)
	}

	header := blobHeader{
		OsVersion:        e.osVersion,
		OsPatchlevel:     e.osPatchlevel,
		VendorPatchlevel: e.vendorPatchlevel,
	}.encode()

	ciphertext, nonce, err := e.cipher.Encrypt(plaintext, blobAad(header, hiddenParams))
	if err != nil {
		return nil, fmt.Errorf("failed to seal key blob: %w", err)
	}

	blob := make([]byte, 0, len(header)+1+len(nonce)+len(ciphertext))
	blob = append(blob, header...)
	blob = append(blob, byte(len(nonce)))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// openBlob authenticates and parses a key blob. Truncated, tampered and
// foreign blobs, and blobs bound to app id/data the caller did not supply,
// all fail with ErrInvalidKeyBlob.
func (e *Engine) openBlob(blob []byte, hiddenParams domain.AuthorizationSet) (*blobPayload, blobHeader, error) {
	var header blobHeader

	if len(blob) < blobHeaderSize+1 {
		return nil, header, domain.ErrInvalidKeyBlob
	}
	if blob[0] != blobFormatVersion {
		return nil, header, domain.ErrInvalidKeyBlob
	}

	header.OsVersion = binary.LittleEndian.Uint32(blob[1:5])
	header.OsPatchlevel = binary.LittleEndian.Uint32(blob[5:9])
	header.VendorPatchlevel = binary.LittleEndian.Uint32(blob[9:13])

	nonceLen := int(blob[blobHeaderSize])
	rest := blob[blobHeaderSize+1:]
	if len(rest) < nonceLen {
		return nil, header, domain.ErrInvalidKeyBlob
	}
	nonce := rest[:nonceLen]
	ciphertext := rest[nonceLen:]

	plaintext, err := e.cipher.Decrypt(ciphertext, nonce, blobAad(blob[:blobHeaderSize], hiddenParams))
	if err != nil {
		return nil, header, domain.ErrInvalidKeyBlob
	}

	var payload blobPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, header, domain.ErrInvalidKeyBlob
	}

	return &payload, header, nil
}

// checkBlobVersion compares a blob's sealed-under system state against the
// engine's. Older blobs must pass through upgrade before use; newer blobs
// cannot be used at all.
func (e *Engine) checkBlobVersion(header blobHeader) error {
	if header.OsVersion > e.osVersion ||
		header.OsPatchlevel > e.osPatchlevel ||
		header.VendorPatchlevel > e.vendorPatchlevel {
		return domain.ErrKeyBlobTooNew
	}
	if header.OsVersion < e.osVersion ||
		header.OsPatchlevel < e.osPatchlevel ||
		header.VendorPatchlevel < e.vendorPatchlevel {
		return domain.ErrKeyRequiresUpgrade
	}
	return nil
}
