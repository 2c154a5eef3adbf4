// Package http provides HTTP handlers for the key management device surface.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/allisson/keymint/internal/httputil"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/http/dto"
	keymintUseCase "github.com/allisson/keymint/internal/keymint/usecase"
	customValidation "github.com/allisson/keymint/internal/validation"
)

// DeviceHandler handles HTTP requests for the device surface. It binds and
// validates DTOs, delegates to the DeviceUseCase and maps errors to status
// codes.
type DeviceHandler struct {
	deviceUseCase keymintUseCase.DeviceUseCase // Business logic for the device surface
	logger        *slog.Logger                 // Structured logger for request handling and error reporting
}

// NewDeviceHandler creates a new device handler with required dependencies.
func NewDeviceHandler(deviceUseCase keymintUseCase.DeviceUseCase, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceUseCase: deviceUseCase,
		logger:        logger,
	}
}

// RegisterRoutes mounts every device endpoint under the given group.
func (h *DeviceHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/hardware-info", h.HardwareInfoHandler)
	group.POST("/rng-entropy", h.AddRngEntropyHandler)

	group.POST("/keys/generate", h.GenerateKeyHandler)
	group.POST("/keys/import", h.ImportKeyHandler)
	group.POST("/keys/import-wrapped", h.ImportWrappedKeyHandler)
	group.POST("/keys/upgrade", h.UpgradeKeyHandler)
	group.POST("/keys/characteristics", h.KeyCharacteristicsHandler)
	group.POST("/keys/delete", h.DeleteKeyHandler)
	group.DELETE("/keys", h.DeleteAllKeysHandler)
	group.POST("/keys/storage-key/convert", h.ConvertStorageKeyHandler)

	group.POST("/operations/begin", h.BeginHandler)
	group.POST("/operations/:handle/update-aad", h.UpdateAadHandler)
	group.POST("/operations/:handle/update", h.UpdateHandler)
	group.POST("/operations/:handle/finish", h.FinishHandler)
	group.POST("/operations/:handle/abort", h.AbortHandler)

	group.POST("/device/locked", h.DeviceLockedHandler)
	group.POST("/device/early-boot-ended", h.EarlyBootEndedHandler)

	group.POST("/attestation-ids/destroy", h.DestroyAttestationIdsHandler)
	group.GET("/root-of-trust/challenge", h.RootOfTrustChallengeHandler)
	group.POST("/root-of-trust/retrieve", h.RootOfTrustHandler)
	group.POST("/root-of-trust/send", h.SendRootOfTrustHandler)
}

// HardwareInfoHandler describes the device implementation.
// GET /v1/hardware-info.
func (h *DeviceHandler) HardwareInfoHandler(c *gin.Context) {
	info, err := h.deviceUseCase.GetHardwareInfo(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHardwareInfo(info))
}

// AddRngEntropyHandler mixes caller entropy into the engine RNG.
// POST /v1/rng-entropy - Returns 204 No Content.
func (h *DeviceHandler) AddRngEntropyHandler(c *gin.Context) {
	var req dto.RngEntropyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 entropy: %w", err), h.logger)
		return
	}

	if err := h.deviceUseCase.AddRngEntropy(c.Request.Context(), data); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// GenerateKeyHandler creates a new key.
// POST /v1/keys/generate - Returns 201 Created with the blob, characteristics
// and certificate chain.
func (h *DeviceHandler) GenerateKeyHandler(c *gin.Context) {
	var req dto.GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	params, err := dto.MapParams(req.Params)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var attestKey *domain.AttestationKey
	if req.AttestationKey != nil {
		attestKey, err = req.AttestationKey.ToAttestationKey()
		if err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}

	result, err := h.deviceUseCase.GenerateKey(c.Request.Context(), params, attestKey)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyCreationResult(result))
}

// ImportKeyHandler creates a key from caller-provided material.
// POST /v1/keys/import - Returns 201 Created.
func (h *DeviceHandler) ImportKeyHandler(c *gin.Context) {
	var req dto.ImportKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	params, err := dto.MapParams(req.Params)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	material, err := base64.StdEncoding.DecodeString(req.KeyMaterial)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key material: %w", err), h.logger)
		return
	}

	result, err := h.deviceUseCase.ImportKey(c.Request.Context(), params, req.Format(), material)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyCreationResult(result))
}

// ImportWrappedKeyHandler imports key material transported under a wrapping
// key.
// POST /v1/keys/import-wrapped - Returns 201 Created.
func (h *DeviceHandler) ImportWrappedKeyHandler(c *gin.Context) {
	var req dto.ImportWrappedKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	wrappedData, err := base64.StdEncoding.DecodeString(req.WrappedData)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 wrapped data: %w", err), h.logger)
		return
	}
	wrappingKeyBlob, err := base64.StdEncoding.DecodeString(req.WrappingKeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 wrapping key blob: %w", err), h.logger)
		return
	}
	maskingKey, err := base64.StdEncoding.DecodeString(req.MaskingKey)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 masking key: %w", err), h.logger)
		return
	}
	unwrappingParams, err := dto.MapParams(req.UnwrappingParams)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	result, err := h.deviceUseCase.ImportWrappedKey(
		c.Request.Context(), wrappedData, wrappingKeyBlob, maskingKey, unwrappingParams,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyCreationResult(result))
}

// UpgradeKeyHandler re-seals a blob under current system state.
// POST /v1/keys/upgrade - Returns 200 OK; an empty key_blob means the blob
// was already current.
func (h *DeviceHandler) UpgradeKeyHandler(c *gin.Context) {
	var req dto.UpgradeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	keyBlob, err := base64.StdEncoding.DecodeString(req.KeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key blob: %w", err), h.logger)
		return
	}
	upgradeParams, err := dto.MapParams(req.UpgradeParams)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	upgraded, err := h.deviceUseCase.UpgradeKey(c.Request.Context(), keyBlob, upgradeParams)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUpgradedKey(upgraded))
}

// KeyCharacteristicsHandler recomputes a blob's characteristics.
// POST /v1/keys/characteristics - Returns 200 OK.
func (h *DeviceHandler) KeyCharacteristicsHandler(c *gin.Context) {
	var req dto.KeyCharacteristicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	keyBlob, err := base64.StdEncoding.DecodeString(req.KeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key blob: %w", err), h.logger)
		return
	}
	appID, err := base64.StdEncoding.DecodeString(req.ApplicationID)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 application id: %w", err), h.logger)
		return
	}
	appData, err := base64.StdEncoding.DecodeString(req.ApplicationData)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 application data: %w", err), h.logger)
		return
	}

	characteristics, err := h.deviceUseCase.GetKeyCharacteristics(c.Request.Context(), keyBlob, appID, appData)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key_characteristics": dto.MapKeyCharacteristics(characteristics)})
}

// DeleteKeyHandler invalidates a key blob.
// POST /v1/keys/delete - Returns 204 No Content.
func (h *DeviceHandler) DeleteKeyHandler(c *gin.Context) {
	var req dto.DeleteKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	keyBlob, err := base64.StdEncoding.DecodeString(req.KeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key blob: %w", err), h.logger)
		return
	}

	if err := h.deviceUseCase.DeleteKey(c.Request.Context(), keyBlob); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteAllKeysHandler invalidates every key the device issued.
// DELETE /v1/keys - Returns 204 No Content.
func (h *DeviceHandler) DeleteAllKeysHandler(c *gin.Context) {
	if err := h.deviceUseCase.DeleteAllKeys(c.Request.Context()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ConvertStorageKeyHandler converts a storage key blob to an ephemeral key.
// POST /v1/keys/storage-key/convert - Returns 501 Not Implemented on this
// device.
func (h *DeviceHandler) ConvertStorageKeyHandler(c *gin.Context) {
	var req dto.DeleteKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	keyBlob, err := base64.StdEncoding.DecodeString(req.KeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key blob: %w", err), h.logger)
		return
	}

	ephemeral, err := h.deviceUseCase.ConvertStorageKeyToEphemeral(c.Request.Context(), keyBlob)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutput(ephemeral))
}

// BeginHandler starts a crypto operation.
// POST /v1/operations/begin - Returns 201 Created with the handle, challenge
// and engine output params.
func (h *DeviceHandler) BeginHandler(c *gin.Context) {
	var req dto.BeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	keyBlob, err := base64.StdEncoding.DecodeString(req.KeyBlob)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 key blob: %w", err), h.logger)
		return
	}
	params, err := dto.MapParams(req.Params)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var authToken *domain.HardwareAuthToken
	if req.AuthToken != nil {
		authToken, err = req.AuthToken.ToAuthToken()
		if err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}

	result, err := h.deviceUseCase.Begin(c.Request.Context(), req.KeyPurpose(), keyBlob, params, authToken)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapBeginResult(result))
}

// operationHandle parses the handle path param. Handles travel as decimal
// strings.
func (h *DeviceHandler) operationHandle(c *gin.Context) (domain.OperationHandle, bool) {
	raw := c.Param("handle")
	handle, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid operation handle %q", raw), h.logger)
		return 0, false
	}
	return domain.OperationHandle(handle), true
}

// UpdateAadHandler feeds associated data to a live AEAD operation.
// POST /v1/operations/:handle/update-aad - Returns 204 No Content.
func (h *DeviceHandler) UpdateAadHandler(c *gin.Context) {
	handle, ok := h.operationHandle(c)
	if !ok {
		return
	}

	var req dto.UpdateAadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 data: %w", err), h.logger)
		return
	}

	if err := h.deviceUseCase.UpdateAad(c.Request.Context(), handle, data); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateHandler feeds input to a live operation.
// POST /v1/operations/:handle/update - Returns 200 OK with any produced
// output.
func (h *DeviceHandler) UpdateHandler(c *gin.Context) {
	handle, ok := h.operationHandle(c)
	if !ok {
		return
	}

	var req dto.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := base64.StdEncoding.DecodeString(req.Input)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 input: %w", err), h.logger)
		return
	}

	output, err := h.deviceUseCase.Update(c.Request.Context(), handle, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutput(output))
}

// FinishHandler completes a live operation.
// POST /v1/operations/:handle/finish - Returns 200 OK with the final output.
// The handle is retired regardless of the outcome.
func (h *DeviceHandler) FinishHandler(c *gin.Context) {
	handle, ok := h.operationHandle(c)
	if !ok {
		return
	}

	var req dto.FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := base64.StdEncoding.DecodeString(req.Input)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 input: %w", err), h.logger)
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 signature: %w", err), h.logger)
		return
	}

	output, err := h.deviceUseCase.Finish(c.Request.Context(), handle, input, signature)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutput(output))
}

// AbortHandler discards a live operation.
// POST /v1/operations/:handle/abort - Returns 204 No Content.
func (h *DeviceHandler) AbortHandler(c *gin.Context) {
	handle, ok := h.operationHandle(c)
	if !ok {
		return
	}

	if err := h.deviceUseCase.Abort(c.Request.Context(), handle); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeviceLockedHandler records that the device is locked.
// POST /v1/device/locked - Returns 204 No Content.
func (h *DeviceHandler) DeviceLockedHandler(c *gin.Context) {
	var req dto.DeviceLockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	var timestampToken *domain.TimestampToken
	if req.TimestampToken != nil {
		token, err := req.TimestampToken.ToTimestampToken()
		if err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
		timestampToken = token
	}

	if err := h.deviceUseCase.DeviceLocked(c.Request.Context(), req.PasswordOnly, timestampToken); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// EarlyBootEndedHandler closes the early boot window.
// POST /v1/device/early-boot-ended - Returns 204 No Content.
func (h *DeviceHandler) EarlyBootEndedHandler(c *gin.Context) {
	if err := h.deviceUseCase.EarlyBootEnded(c.Request.Context()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// DestroyAttestationIdsHandler destroys provisioned attestation identifiers.
// POST /v1/attestation-ids/destroy - Returns 501 Not Implemented on this
// device.
func (h *DeviceHandler) DestroyAttestationIdsHandler(c *gin.Context) {
	if err := h.deviceUseCase.DestroyAttestationIds(c.Request.Context()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RootOfTrustChallengeHandler mints a root-of-trust transfer challenge.
// GET /v1/root-of-trust/challenge - Returns 501 Not Implemented on this
// device.
func (h *DeviceHandler) RootOfTrustChallengeHandler(c *gin.Context) {
	challenge, err := h.deviceUseCase.GetRootOfTrustChallenge(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": base64.StdEncoding.EncodeToString(challenge[:])})
}

// RootOfTrustHandler retrieves the root of trust bound to a challenge.
// POST /v1/root-of-trust/retrieve - Returns 501 Not Implemented on this
// device.
func (h *DeviceHandler) RootOfTrustHandler(c *gin.Context) {
	var req struct {
		Challenge string `json:"challenge"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Challenge)
	if err != nil || len(raw) != 16 {
		httputil.HandleBadRequestGin(c, fmt.Errorf("challenge must be 16 base64-encoded bytes"), h.logger)
		return
	}

	var challenge [16]byte
	copy(challenge[:], raw)

	rootOfTrust, err := h.deviceUseCase.GetRootOfTrust(c.Request.Context(), challenge)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutput(rootOfTrust))
}

// SendRootOfTrustHandler accepts a root of trust from another device.
// POST /v1/root-of-trust/send - Returns 501 Not Implemented on this device.
func (h *DeviceHandler) SendRootOfTrustHandler(c *gin.Context) {
	var req struct {
		RootOfTrust string `json:"root_of_trust"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	rootOfTrust, err := base64.StdEncoding.DecodeString(req.RootOfTrust)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 root of trust: %w", err), h.logger)
		return
	}

	if err := h.deviceUseCase.SendRootOfTrust(c.Request.Context(), rootOfTrust); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
