package dto

import (
	"encoding/base64"
	"strconv"

	"github.com/allisson/keymint/internal/keymint/domain"
)

// ParamResponse is one authorization param in API responses. Blob values are
// base64-encoded; boolean tags always carry true.
type ParamResponse struct {
	Tag       string  `json:"tag"`
	UintValue *uint64 `json:"uint_value,omitempty"`
	BoolValue *bool   `json:"bool_value,omitempty"`
	BlobValue string  `json:"blob_value,omitempty"`
}

// MapParam converts a domain param to its wire representation.
func MapParam(param domain.Param) ParamResponse {
	response := ParamResponse{Tag: param.Tag.String()}

	switch param.Tag.Type() {
	case domain.TypeBool:
		value := param.Bool
		response.BoolValue = &value
	case domain.TypeBytes, domain.TypeBignum:
		response.BlobValue = base64.StdEncoding.EncodeToString(param.Blob)
	default:
		value := param.Uint
		response.UintValue = &value
	}

	return response
}

// MapAuthorizationSet converts an authorization set to wire params.
func MapAuthorizationSet(set domain.AuthorizationSet) []ParamResponse {
	params := make([]ParamResponse, 0, len(set))
	for _, param := range set {
		params = append(params, MapParam(param))
	}
	return params
}

// KeyCharacteristicsResponse is one enforcement-domain entry of a key's
// characteristics.
type KeyCharacteristicsResponse struct {
	SecurityLevel  string          `json:"security_level"`
	Authorizations []ParamResponse `json:"authorizations"`
}

// MapKeyCharacteristics converts domain characteristics to wire entries.
func MapKeyCharacteristics(characteristics []domain.KeyCharacteristics) []KeyCharacteristicsResponse {
	entries := make([]KeyCharacteristicsResponse, 0, len(characteristics))
	for _, entry := range characteristics {
		entries = append(entries, KeyCharacteristicsResponse{
			SecurityLevel:  entry.SecurityLevel.String(),
			Authorizations: MapAuthorizationSet(entry.Authorizations),
		})
	}
	return entries
}

// KeyCreationResponse is the result of generate, import and import-wrapped.
type KeyCreationResponse struct {
	KeyBlob            string                       `json:"key_blob"` // Base64-encoded opaque blob
	KeyCharacteristics []KeyCharacteristicsResponse `json:"key_characteristics"`
	CertificateChain   []string                     `json:"certificate_chain,omitempty"` // Leaf-first base64 DER
}

// MapKeyCreationResult converts a domain creation result to its response.
func MapKeyCreationResult(result *domain.KeyCreationResult) KeyCreationResponse {
	chain := make([]string, 0, len(result.CertificateChain))
	for _, cert := range result.CertificateChain {
		chain = append(chain, base64.StdEncoding.EncodeToString(cert))
	}

	return KeyCreationResponse{
		KeyBlob:            base64.StdEncoding.EncodeToString(result.KeyBlob),
		KeyCharacteristics: MapKeyCharacteristics(result.KeyCharacteristics),
		CertificateChain:   chain,
	}
}

// HardwareInfoResponse describes the device implementation.
type HardwareInfoResponse struct {
	VersionNumber          int32  `json:"version_number"`
	SecurityLevel          string `json:"security_level"`
	KeyMintName            string `json:"keymint_name"`
	KeyMintAuthorName      string `json:"keymint_author_name"`
	TimestampTokenRequired bool   `json:"timestamp_token_required"`
}

// MapHardwareInfo converts domain hardware info to its response.
func MapHardwareInfo(info *domain.HardwareInfo) HardwareInfoResponse {
	return HardwareInfoResponse{
		VersionNumber:          info.VersionNumber,
		SecurityLevel:          info.SecurityLevel.String(),
		KeyMintName:            info.KeyMintName,
		KeyMintAuthorName:      info.KeyMintAuthorName,
		TimestampTokenRequired: info.TimestampTokenRequired,
	}
}

// BeginResponse is the result of a successful begin call. The handle is a
// decimal string: 64-bit handles do not survive JSON number precision.
type BeginResponse struct {
	Handle    string          `json:"handle"`
	Challenge int64           `json:"challenge"`
	Params    []ParamResponse `json:"params,omitempty"`
}

// MapBeginResult converts a domain begin result to its response.
func MapBeginResult(result *domain.BeginResult) BeginResponse {
	return BeginResponse{
		Handle:    strconv.FormatUint(uint64(result.Handle), 10),
		Challenge: result.Challenge,
		Params:    MapAuthorizationSet(result.Params),
	}
}

// OutputResponse carries operation output bytes.
type OutputResponse struct {
	Output string `json:"output"` // Base64-encoded
}

// MapOutput converts operation output bytes to a response.
func MapOutput(output []byte) OutputResponse {
	return OutputResponse{Output: base64.StdEncoding.EncodeToString(output)}
}

// UpgradeKeyResponse carries the re-sealed key blob. An empty key_blob means
// the blob was already current.
type UpgradeKeyResponse struct {
	KeyBlob string `json:"key_blob"` // Base64-encoded, empty when no upgrade was needed
}

// MapUpgradedKey converts an upgraded blob to a response.
func MapUpgradedKey(keyBlob []byte) UpgradeKeyResponse {
	if len(keyBlob) == 0 {
		return UpgradeKeyResponse{}
	}
	return UpgradeKeyResponse{KeyBlob: base64.StdEncoding.EncodeToString(keyBlob)}
}
