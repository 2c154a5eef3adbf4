package domain

import (
	"bytes"
	"encoding/binary"
)

// HardwareAuthToken proves a recent user authentication to the engine. Tokens
// are minted by an authenticator sharing a MAC key with the engine; this core
// never validates them, it only forwards them.
type HardwareAuthToken struct {
	Challenge         int64
	UserID            int64
	AuthenticatorID   int64
	AuthenticatorType HardwareAuthenticatorType
	TimestampMillis   int64
	MAC               []byte
}

// Serialize encodes the token into the fixed little-endian layout the engine
// expects inside an AUTH_TOKEN param: a version byte, the numeric fields, then
// the MAC. Auth tokens travel the same channel as other authorizations rather
// than a side channel, so the engine validates them as an ordinary tag.
func (t *HardwareAuthToken) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(0) // token version
	_ = binary.Write(&buf, binary.LittleEndian, uint64(t.Challenge))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(t.UserID))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(t.AuthenticatorID))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(t.AuthenticatorType))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(t.TimestampMillis))
	buf.Write(t.MAC)
	return buf.Bytes()
}

// TimestampToken attests the current time relative to a challenge, minted by a
// secure clock. Forwarded opaquely to the engine on deviceLocked.
type TimestampToken struct {
	Challenge       int64
	TimestampMillis int64
	MAC             []byte
}
