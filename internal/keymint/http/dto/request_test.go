package dto_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/http/dto"
)

func uintPtr(v uint64) *uint64 { return &v }
func boolPtr(v bool) *bool     { return &v }

func TestParamRequest_ToParam(t *testing.T) {
	t.Run("enum param", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "ALGORITHM", UintValue: uintPtr(uint64(domain.AlgorithmAES))}

		param, err := req.ToParam()
		require.NoError(t, err)
		assert.Equal(t, domain.TagAlgorithm, param.Tag)
		assert.Equal(t, uint64(domain.AlgorithmAES), param.Uint)
	})

	t.Run("bool param is a presence marker", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "NO_AUTH_REQUIRED"}

		param, err := req.ToParam()
		require.NoError(t, err)
		assert.Equal(t, domain.TagNoAuthRequired, param.Tag)
		assert.True(t, param.Bool)
	})

	t.Run("explicit false bool is rejected", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "NO_AUTH_REQUIRED", BoolValue: boolPtr(false)}

		_, err := req.ToParam()
		assert.Error(t, err)
	})

	t.Run("blob param decodes base64", func(t *testing.T) {
		req := dto.ParamRequest{
			Tag:       "APPLICATION_ID",
			BlobValue: base64.StdEncoding.EncodeToString([]byte("app")),
		}

		param, err := req.ToParam()
		require.NoError(t, err)
		assert.Equal(t, domain.TagApplicationID, param.Tag)
		assert.Equal(t, []byte("app"), param.Blob)
	})

	t.Run("invalid base64 blob fails", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "APPLICATION_ID", BlobValue: "not-base64!!!"}

		_, err := req.ToParam()
		assert.Error(t, err)
	})

	t.Run("missing uint value fails", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "KEY_SIZE"}

		_, err := req.ToParam()
		assert.Error(t, err)
	})

	t.Run("unknown tag fails", func(t *testing.T) {
		req := dto.ParamRequest{Tag: "NOT_A_TAG"}

		_, err := req.ToParam()
		assert.Error(t, err)
	})
}

func TestMapParams(t *testing.T) {
	t.Run("maps every param", func(t *testing.T) {
		set, err := dto.MapParams([]dto.ParamRequest{
			{Tag: "ALGORITHM", UintValue: uintPtr(uint64(domain.AlgorithmAES))},
			{Tag: "KEY_SIZE", UintValue: uintPtr(256)},
			{Tag: "NO_AUTH_REQUIRED"},
		})
		require.NoError(t, err)
		require.Len(t, set, 3)
		assert.True(t, set.Contains(domain.TagNoAuthRequired))
	})

	t.Run("empty input maps to nil", func(t *testing.T) {
		set, err := dto.MapParams(nil)
		require.NoError(t, err)
		assert.Nil(t, set)
	})

	t.Run("one bad param fails the set", func(t *testing.T) {
		_, err := dto.MapParams([]dto.ParamRequest{
			{Tag: "ALGORITHM", UintValue: uintPtr(uint64(domain.AlgorithmAES))},
			{Tag: "KEY_SIZE"},
		})
		assert.Error(t, err)
	})
}

func TestGenerateKeyRequest_Validate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := dto.GenerateKeyRequest{
			Params: []dto.ParamRequest{
				{Tag: "ALGORITHM", UintValue: uintPtr(uint64(domain.AlgorithmAES))},
			},
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("missing params", func(t *testing.T) {
		req := dto.GenerateKeyRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("unknown tag fails validation", func(t *testing.T) {
		req := dto.GenerateKeyRequest{
			Params: []dto.ParamRequest{{Tag: "NOT_A_TAG"}},
		}
		assert.Error(t, req.Validate())
	})
}

func TestImportKeyRequest_Validate(t *testing.T) {
	validParams := []dto.ParamRequest{
		{Tag: "ALGORITHM", UintValue: uintPtr(uint64(domain.AlgorithmAES))},
	}
	material := base64.StdEncoding.EncodeToString(make([]byte, 32))

	t.Run("valid request", func(t *testing.T) {
		req := dto.ImportKeyRequest{Params: validParams, KeyFormat: "RAW", KeyMaterial: material}
		assert.NoError(t, req.Validate())
		assert.Equal(t, domain.FormatRaw, req.Format())
	})

	t.Run("unknown format", func(t *testing.T) {
		req := dto.ImportKeyRequest{Params: validParams, KeyFormat: "DER", KeyMaterial: material}
		assert.Error(t, req.Validate())
	})

	t.Run("missing material", func(t *testing.T) {
		req := dto.ImportKeyRequest{Params: validParams, KeyFormat: "RAW"}
		assert.Error(t, req.Validate())
	})
}

func TestBeginRequest_Validate(t *testing.T) {
	keyBlob := base64.StdEncoding.EncodeToString([]byte("blob"))

	t.Run("valid request", func(t *testing.T) {
		req := dto.BeginRequest{Purpose: "ENCRYPT", KeyBlob: keyBlob}
		assert.NoError(t, req.Validate())
		assert.Equal(t, domain.PurposeEncrypt, req.KeyPurpose())
	})

	t.Run("unknown purpose", func(t *testing.T) {
		req := dto.BeginRequest{Purpose: "DERIVE", KeyBlob: keyBlob}
		assert.Error(t, req.Validate())
	})

	t.Run("missing key blob", func(t *testing.T) {
		req := dto.BeginRequest{Purpose: "ENCRYPT"}
		assert.Error(t, req.Validate())
	})
}

func TestAuthTokenRequest_ToAuthToken(t *testing.T) {
	req := dto.AuthTokenRequest{
		Challenge:         42,
		UserID:            7,
		AuthenticatorID:   1,
		AuthenticatorType: 1,
		TimestampMillis:   1700000000000,
		MAC:               base64.StdEncoding.EncodeToString([]byte("mac")),
	}

	token, err := req.ToAuthToken()
	require.NoError(t, err)
	assert.Equal(t, int64(42), token.Challenge)
	assert.Equal(t, int64(7), token.UserID)
	assert.Equal(t, domain.AuthenticatorPassword, token.AuthenticatorType)
	assert.Equal(t, []byte("mac"), token.MAC)
}
