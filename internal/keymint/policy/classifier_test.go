package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
)

func softwareSet() domain.AuthorizationSet {
	return domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
		domain.NewUint(domain.TagKeySize, 256),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeEncrypt)),
		domain.NewBool(domain.TagNoAuthRequired),
	}
}

func TestClassifyCharacteristicsSoftwareLevel(t *testing.T) {
	t.Run("engine-enforced tags land in the software-as-hardware entry", func(t *testing.T) {
		sw := softwareSet()

		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, domain.SecurityLevelSoftware, result[0].SecurityLevel)
		assert.True(t, result[0].Authorizations.Equal(sw))
	})

	t.Run("keystore-enforced tags split into the keystore entry", func(t *testing.T) {
		sw := append(softwareSet(), domain.NewUint(domain.TagUserID, 42))

		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 2)

		assert.Equal(t, domain.SecurityLevelSoftware, result[0].SecurityLevel)
		assert.Len(t, result[0].Authorizations, 4)
		assert.False(t, result[0].Authorizations.Contains(domain.TagUserID))

		assert.Equal(t, domain.SecurityLevelKeystore, result[1].SecurityLevel)
		require.Len(t, result[1].Authorizations, 1)
		assert.Equal(t, domain.TagUserID, result[1].Authorizations[0].Tag)
	})

	t.Run("dropped buckets never surface", func(t *testing.T) {
		sw := append(softwareSet(),
			domain.NewBool(domain.TagStorageKey),                        // unimplemented
			domain.NewBlob(domain.TagApplicationData, []byte("secret")), // excluded
			domain.NewBlob(domain.TagRootOfTrust, []byte("rot")),        // not characteristic
			domain.NewBlob(domain.TagNonce, []byte("nonce")),            // not characteristic
		)

		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 1)
		for _, dropped := range []domain.Tag{
			domain.TagStorageKey, domain.TagApplicationData,
			domain.TagRootOfTrust, domain.TagNonce,
		} {
			assert.False(t, result[0].Authorizations.Contains(dropped))
		}
	})

	t.Run("creation datetime echoed only when requested", func(t *testing.T) {
		creation := domain.NewDate(domain.TagCreationDatetime, 1700000000000)
		sw := append(softwareSet(), creation)

		// Not requested: dropped entirely.
		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.False(t, result[0].Authorizations.Contains(domain.TagCreationDatetime))

		// Requested: echoed back keystore-enforced.
		requested := domain.AuthorizationSet{creation}
		result, err = ClassifyCharacteristics(
			domain.SecurityLevelSoftware, requested, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, domain.SecurityLevelKeystore, result[1].SecurityLevel)
		assert.True(t, result[1].Authorizations.Contains(domain.TagCreationDatetime))
	})

	t.Run("no tag appears in both entries", func(t *testing.T) {
		sw := append(softwareSet(),
			domain.NewUint(domain.TagUserID, 7),
			domain.NewDate(domain.TagActiveDatetime, 1700000000000),
		)

		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 2)
		for _, p := range result[0].Authorizations {
			assert.False(t, result[1].Authorizations.Contains(p.Tag),
				"tag %s present in both enforcement domains", p.Tag)
		}
	})

	t.Run("forbidden tag aborts classification", func(t *testing.T) {
		sw := append(softwareSet(), domain.NewEnum(domain.TagKdf, 0))

		_, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, sw, nil, true,
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrForbiddenTag)
		assert.ErrorIs(t, err, apperrors.ErrInternalFault)
	})

	t.Run("hardware-enforced tags at software level are a contract fault", func(t *testing.T) {
		hw := domain.AuthorizationSet{domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES))}

		_, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, softwareSet(), hw, true,
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrClassifierContract)
	})

	t.Run("empty input yields no entries", func(t *testing.T) {
		result, err := ClassifyCharacteristics(
			domain.SecurityLevelSoftware, nil, nil, nil, true,
		)
		require.NoError(t, err)
		assert.Empty(t, result)
	})
}

func TestClassifyCharacteristicsHardwareLevels(t *testing.T) {
	hw := domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmEC)),
		domain.NewUint(domain.TagKeySize, 256),
	}
	sw := domain.AuthorizationSet{
		// Tags the registry would drop at software level; at a hardware level
		// they pass through verbatim, unfiltered by the tag table.
		domain.NewDate(domain.TagCreationDatetime, 1700000000000),
		domain.NewBlob(domain.TagRootOfTrust, []byte("rot")),
	}

	for _, level := range []domain.SecurityLevel{
		domain.SecurityLevelTrustedEnvironment,
		domain.SecurityLevelStrongBox,
	} {
		t.Run(level.String(), func(t *testing.T) {
			result, err := ClassifyCharacteristics(level, nil, sw, hw, true)
			require.NoError(t, err)
			require.Len(t, result, 2)

			assert.Equal(t, level, result[0].SecurityLevel)
			assert.True(t, result[0].Authorizations.Equal(hw))

			assert.Equal(t, domain.SecurityLevelKeystore, result[1].SecurityLevel)
			assert.True(t, result[1].Authorizations.Equal(sw))
		})
	}

	t.Run("keystore entry suppressed when not included", func(t *testing.T) {
		result, err := ClassifyCharacteristics(
			domain.SecurityLevelStrongBox, nil, sw, hw, false,
		)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, domain.SecurityLevelStrongBox, result[0].SecurityLevel)
	})

	t.Run("empty software set omits the keystore entry", func(t *testing.T) {
		result, err := ClassifyCharacteristics(
			domain.SecurityLevelTrustedEnvironment, nil, nil, hw, true,
		)
		require.NoError(t, err)
		require.Len(t, result, 1)
	})
}

func TestClassifyCharacteristicsIsPure(t *testing.T) {
	requested := domain.AuthorizationSet{domain.NewDate(domain.TagCreationDatetime, 1700000000000)}
	sw := append(softwareSet(),
		domain.NewDate(domain.TagCreationDatetime, 1700000000000),
		domain.NewUint(domain.TagUserID, 3),
	)

	first, err := ClassifyCharacteristics(domain.SecurityLevelSoftware, requested, sw, nil, true)
	require.NoError(t, err)
	second, err := ClassifyCharacteristics(domain.SecurityLevelSoftware, requested, sw, nil, true)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SecurityLevel, second[i].SecurityLevel)
		assert.True(t, first[i].Authorizations.Equal(second[i].Authorizations))
	}
}
