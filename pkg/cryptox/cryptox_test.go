package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lanternauth/lantern/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := cryptox.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.NoError(t, cryptox.VerifyPassword("hunter2hunter2", hash))
	require.ErrorIs(t, cryptox.VerifyPassword("wrong", hash), cryptox.ErrPasswordMismatch)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, cryptox.VerifyPassword("pw", "not-a-hash"))
	require.Error(t, cryptox.VerifyPassword("pw", "$bcrypt$v=19$m=1,t=1,p=1$aaaa$bbbb"))
}

func TestGenerateToken(t *testing.T) {
	a, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	b, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 43) // 32 bytes base64url, no padding

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintTokenIsDeterministic(t *testing.T) {
	fp1 := cryptox.FingerprintToken("some-token")
	fp2 := cryptox.FingerprintToken("some-token")
	require.Equal(t, fp1, fp2)
	require.Len(t, fp1, 64) // sha256 hex
	require.NotEqual(t, fp1, cryptox.FingerprintToken("other-token"))
}
