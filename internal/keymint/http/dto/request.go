// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"
	"fmt"

	validation "github.com/jellydator/validation"

	"github.com/allisson/keymint/internal/keymint/domain"
	customValidation "github.com/allisson/keymint/internal/validation"
)

// keyPurposesByName maps stable wire names to key purposes.
var keyPurposesByName = map[string]domain.KeyPurpose{
	"ENCRYPT":    domain.PurposeEncrypt,
	"DECRYPT":    domain.PurposeDecrypt,
	"SIGN":       domain.PurposeSign,
	"VERIFY":     domain.PurposeVerify,
	"WRAP_KEY":   domain.PurposeWrapKey,
	"AGREE_KEY":  domain.PurposeAgreeKey,
	"ATTEST_KEY": domain.PurposeAttestKey,
}

// keyFormatsByName maps stable wire names to key material formats.
var keyFormatsByName = map[string]domain.KeyFormat{
	"X509":  domain.FormatX509,
	"PKCS8": domain.FormatPKCS8,
	"RAW":   domain.FormatRaw,
}

// ParamRequest is one authorization param on the wire. Exactly one of
// uint_value, bool_value and blob_value carries the value, selected by the
// tag's type; blob values are base64-encoded.
type ParamRequest struct {
	Tag       string  `json:"tag"`
	UintValue *uint64 `json:"uint_value,omitempty"`
	BoolValue *bool   `json:"bool_value,omitempty"`
	BlobValue string  `json:"blob_value,omitempty"`
}

// Validate checks the param request.
func (r *ParamRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Tag,
			validation.Required,
			customValidation.NotBlank,
			customValidation.TagName,
		),
		validation.Field(&r.BlobValue, customValidation.Base64),
	)
}

// ToParam converts the wire param into a domain param.
func (r *ParamRequest) ToParam() (domain.Param, error) {
	tag, ok := domain.TagByName(r.Tag)
	if !ok {
		return domain.Param{}, fmt.Errorf("unknown tag %q", r.Tag)
	}

	switch tag.Type() {
	case domain.TypeBool:
		if r.BoolValue != nil && !*r.BoolValue {
			return domain.Param{}, fmt.Errorf("tag %q: boolean tags are present/absent markers, false is not representable", r.Tag)
		}
		return domain.NewBool(tag), nil

	case domain.TypeBytes, domain.TypeBignum:
		blob, err := base64.StdEncoding.DecodeString(r.BlobValue)
		if err != nil {
			return domain.Param{}, fmt.Errorf("tag %q: invalid base64 blob value: %w", r.Tag, err)
		}
		return domain.NewBlob(tag, blob), nil

	default:
		if r.UintValue == nil {
			return domain.Param{}, fmt.Errorf("tag %q: uint_value is required", r.Tag)
		}
		return domain.Param{Tag: tag, Uint: *r.UintValue}, nil
	}
}

// MapParams converts a slice of wire params into an authorization set.
func MapParams(params []ParamRequest) (domain.AuthorizationSet, error) {
	if len(params) == 0 {
		return nil, nil
	}

	set := make(domain.AuthorizationSet, 0, len(params))
	for i := range params {
		param, err := params[i].ToParam()
		if err != nil {
			return nil, err
		}
		set = append(set, param)
	}
	return set, nil
}

// validateParams runs Validate over every param in a slice.
func validateParams(value interface{}) error {
	params, ok := value.([]ParamRequest)
	if !ok {
		return validation.NewError("validation_params_type", "must be a param list")
	}
	for i := range params {
		if err := params[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AttestationKeyRequest carries the signing key for attested key creation.
type AttestationKeyRequest struct {
	KeyBlob           string         `json:"key_blob"`            // Base64-encoded opaque blob
	AttestKeyParams   []ParamRequest `json:"attest_key_params"`   // Params needed to use the key
	IssuerSubjectName string         `json:"issuer_subject_name"` // Base64-encoded DER subject
}

// Validate checks the attestation key request.
func (r *AttestationKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyBlob, validation.Required, customValidation.Base64),
		validation.Field(&r.AttestKeyParams, validation.By(validateParams)),
		validation.Field(&r.IssuerSubjectName, customValidation.Base64),
	)
}

// ToAttestationKey converts the request into a domain attestation key.
func (r *AttestationKeyRequest) ToAttestationKey() (*domain.AttestationKey, error) {
	keyBlob, err := base64.StdEncoding.DecodeString(r.KeyBlob)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 attestation key blob: %w", err)
	}
	issuerSubject, err := base64.StdEncoding.DecodeString(r.IssuerSubjectName)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 issuer subject name: %w", err)
	}
	params, err := MapParams(r.AttestKeyParams)
	if err != nil {
		return nil, err
	}

	return &domain.AttestationKey{
		KeyBlob:           keyBlob,
		AttestKeyParams:   params,
		IssuerSubjectName: issuerSubject,
	}, nil
}

// GenerateKeyRequest contains the parameters for generating a new key.
type GenerateKeyRequest struct {
	Params         []ParamRequest         `json:"params"`
	AttestationKey *AttestationKeyRequest `json:"attestation_key,omitempty"`
}

// Validate checks the generate key request.
func (r *GenerateKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Params, validation.Required, validation.By(validateParams)),
		validation.Field(&r.AttestationKey),
	)
}

// ImportKeyRequest contains the parameters for importing caller key material.
type ImportKeyRequest struct {
	Params         []ParamRequest         `json:"params"`
	KeyFormat      string                 `json:"key_format"`   // "RAW", "PKCS8" or "X509"
	KeyMaterial    string                 `json:"key_material"` // Base64-encoded material
	AttestationKey *AttestationKeyRequest `json:"attestation_key,omitempty"`
}

// Validate checks the import key request.
func (r *ImportKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Params, validation.Required, validation.By(validateParams)),
		validation.Field(&r.KeyFormat,
			validation.Required,
			validation.By(validateKeyFormat),
		),
		validation.Field(&r.KeyMaterial, validation.Required, customValidation.Base64),
		validation.Field(&r.AttestationKey),
	)
}

// validateKeyFormat checks that a string names a known key material format.
func validateKeyFormat(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_key_format_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, ok := keyFormatsByName[s]; !ok {
		return validation.NewError("validation_key_format", "must be one of RAW, PKCS8, X509")
	}
	return nil
}

// Format resolves the wire name into a domain key format. Call after
// Validate.
func (r *ImportKeyRequest) Format() domain.KeyFormat {
	return keyFormatsByName[r.KeyFormat]
}

// ImportWrappedKeyRequest contains the parameters for importing wrapped key
// material. All byte fields are base64-encoded.
type ImportWrappedKeyRequest struct {
	WrappedData      string         `json:"wrapped_data"`
	WrappingKeyBlob  string         `json:"wrapping_key_blob"`
	MaskingKey       string         `json:"masking_key"`
	UnwrappingParams []ParamRequest `json:"unwrapping_params"`
}

// Validate checks the import wrapped key request.
func (r *ImportWrappedKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.WrappedData, validation.Required, customValidation.Base64),
		validation.Field(&r.WrappingKeyBlob, validation.Required, customValidation.Base64),
		validation.Field(&r.MaskingKey, validation.Required, customValidation.Base64),
		validation.Field(&r.UnwrappingParams, validation.By(validateParams)),
	)
}

// UpgradeKeyRequest contains the parameters for upgrading a key blob.
type UpgradeKeyRequest struct {
	KeyBlob       string         `json:"key_blob"`
	UpgradeParams []ParamRequest `json:"upgrade_params"`
}

// Validate checks the upgrade key request.
func (r *UpgradeKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyBlob, validation.Required, customValidation.Base64),
		validation.Field(&r.UpgradeParams, validation.By(validateParams)),
	)
}

// DeleteKeyRequest identifies the key blob to invalidate.
type DeleteKeyRequest struct {
	KeyBlob string `json:"key_blob"`
}

// Validate checks the delete key request.
func (r *DeleteKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyBlob, validation.Required, customValidation.Base64),
	)
}

// KeyCharacteristicsRequest identifies the blob whose characteristics to
// recompute, with the optional app binding that sealed it.
type KeyCharacteristicsRequest struct {
	KeyBlob         string `json:"key_blob"`
	ApplicationID   string `json:"application_id,omitempty"`
	ApplicationData string `json:"application_data,omitempty"`
}

// Validate checks the key characteristics request.
func (r *KeyCharacteristicsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyBlob, validation.Required, customValidation.Base64),
		validation.Field(&r.ApplicationID, customValidation.Base64),
		validation.Field(&r.ApplicationData, customValidation.Base64),
	)
}

// RngEntropyRequest carries caller entropy for the engine RNG.
type RngEntropyRequest struct {
	Data string `json:"data"` // Base64-encoded entropy, at most 2 KiB decoded
}

// Validate checks the entropy request.
func (r *RngEntropyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Data, customValidation.Base64),
	)
}

// AuthTokenRequest is a hardware auth token on the wire.
type AuthTokenRequest struct {
	Challenge         int64  `json:"challenge"`
	UserID            int64  `json:"user_id"`
	AuthenticatorID   int64  `json:"authenticator_id"`
	AuthenticatorType uint32 `json:"authenticator_type"`
	TimestampMillis   int64  `json:"timestamp_millis"`
	MAC               string `json:"mac"` // Base64-encoded
}

// Validate checks the auth token request.
func (r *AuthTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MAC, customValidation.Base64),
	)
}

// ToAuthToken converts the request into a domain auth token.
func (r *AuthTokenRequest) ToAuthToken() (*domain.HardwareAuthToken, error) {
	mac, err := base64.StdEncoding.DecodeString(r.MAC)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 auth token mac: %w", err)
	}

	return &domain.HardwareAuthToken{
		Challenge:         r.Challenge,
		UserID:            r.UserID,
		AuthenticatorID:   r.AuthenticatorID,
		AuthenticatorType: domain.HardwareAuthenticatorType(r.AuthenticatorType),
		TimestampMillis:   r.TimestampMillis,
		MAC:               mac,
	}, nil
}

// BeginRequest contains the parameters for beginning a crypto operation.
type BeginRequest struct {
	Purpose   string            `json:"purpose"` // "ENCRYPT", "DECRYPT", "SIGN", "VERIFY"
	KeyBlob   string            `json:"key_blob"`
	Params    []ParamRequest    `json:"params"`
	AuthToken *AuthTokenRequest `json:"auth_token,omitempty"`
}

// Validate checks the begin request.
func (r *BeginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Purpose,
			validation.Required,
			validation.By(validatePurpose),
		),
		validation.Field(&r.KeyBlob, validation.Required, customValidation.Base64),
		validation.Field(&r.Params, validation.By(validateParams)),
		validation.Field(&r.AuthToken),
	)
}

// validatePurpose checks that a string names a known key purpose.
func validatePurpose(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_purpose_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, ok := keyPurposesByName[s]; !ok {
		return validation.NewError("validation_purpose", "must be a known key purpose")
	}
	return nil
}

// KeyPurpose resolves the wire name into a domain purpose. Call after
// Validate.
func (r *BeginRequest) KeyPurpose() domain.KeyPurpose {
	return keyPurposesByName[r.Purpose]
}

// UpdateAadRequest carries associated data for a live AEAD operation.
type UpdateAadRequest struct {
	Data string `json:"data"` // Base64-encoded
}

// Validate checks the update-aad request.
func (r *UpdateAadRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Data, validation.Required, customValidation.Base64),
	)
}

// UpdateRequest carries input for a live operation.
type UpdateRequest struct {
	Input string `json:"input"` // Base64-encoded
}

// Validate checks the update request.
func (r *UpdateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Input, validation.Required, customValidation.Base64),
	)
}

// FinishRequest carries the final input and, for verify operations, the
// signature to check.
type FinishRequest struct {
	Input     string `json:"input,omitempty"`     // Base64-encoded
	Signature string `json:"signature,omitempty"` // Base64-encoded
}

// Validate checks the finish request.
func (r *FinishRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Input, customValidation.Base64),
		validation.Field(&r.Signature, customValidation.Base64),
	)
}

// TimestampTokenRequest is a secure-clock timestamp token on the wire.
type TimestampTokenRequest struct {
	Challenge       int64  `json:"challenge"`
	TimestampMillis int64  `json:"timestamp_millis"`
	MAC             string `json:"mac"` // Base64-encoded
}

// Validate checks the timestamp token request.
func (r *TimestampTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MAC, customValidation.Base64),
	)
}

// ToTimestampToken converts the request into a domain timestamp token.
func (r *TimestampTokenRequest) ToTimestampToken() (*domain.TimestampToken, error) {
	mac, err := base64.StdEncoding.DecodeString(r.MAC)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 timestamp token mac: %w", err)
	}

	return &domain.TimestampToken{
		Challenge:       r.Challenge,
		TimestampMillis: r.TimestampMillis,
		MAC:             mac,
	}, nil
}

// DeviceLockedRequest records a device lock event.
type DeviceLockedRequest struct {
	PasswordOnly   bool                   `json:"password_only"`
	TimestampToken *TimestampTokenRequest `json:"timestamp_token,omitempty"`
}

// Validate checks the device locked request.
func (r *DeviceLockedRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TimestampToken),
	)
}
