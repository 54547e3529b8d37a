package cli

import (
	"bytes"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-onboarding/internal/domain"
	jwtinfra "github.com/go-onboarding/internal/infrastructure/jwt"
	"github.com/go-onboarding/internal/pkg/secret"
	"github.com/go-onboarding/internal/pkg/testkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flags keep their values between executions.
	for _, name := range []string{"operator", "role", "expiry", "private-key", "public-key"} {
		f := tokenCmd.Flags().Lookup(name)
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	noEnv := filepath.Join(t.TempDir(), "missing.env")
	rootCmd.SetArgs(append([]string{"--env-file", noEnv}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestToken_IssuesVerifiableToken(t *testing.T) {
	priv, pub := testkeys.Write(t)

	out, err := run(t, "token", "--operator", "root", "--role", domain.RoleAdmin,
		"--private-key", priv, "--public-key", pub, "--expiry", "10m")
	require.NoError(t, err)

	p, err := jwtinfra.NewProvider("", pub, time.Hour)
	require.NoError(t, err)
	claims, err := p.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "root", claims.OperatorID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_RejectsUnknownRole(t *testing.T) {
	priv, pub := testkeys.Write(t)

	_, err := run(t, "token", "--operator", "op-1", "--role", "superuser", "--private-key", priv, "--public-key", pub)
	assert.ErrorContains(t, err, `unknown role "superuser"`)
}

func TestToken_RequiresOperator(t *testing.T) {
	_, err := run(t, "token")
	assert.Error(t, err)
}

func TestToken_RequiresPrivateKey(t *testing.T) {
	t.Setenv("JWT_PRIVATE_KEY_PATH", "")
	_, pub := testkeys.Write(t)

	_, err := run(t, "token", "--operator", "op-1", "--public-key", pub)
	assert.Error(t, err)
}

func TestKeygen_PrintsUsableKey(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)

	key := strings.TrimSpace(out)
	raw, err := hex.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	box, err := secret.NewBox(key)
	require.NoError(t, err)
	sealed, err := box.Seal("pw")
	require.NoError(t, err)
	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "pw", opened)
}
