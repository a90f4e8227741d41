package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
)

func authenticatorCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := crypto.TOTP{
		Secret:    secret,
		Algorithm: crypto.TOTPAlgorithm,
		Digits:    crypto.TOTPDigits,
		Period:    crypto.TOTPPeriod,
		CharSet:   crypto.TOTPCharSet,
	}.Code(at)
	require.NoError(t, err)
	return code
}

func enableTwoFactor(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	ctx := context.Background()

	enr, err := env.twoFactor.BeginEnrollment(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, env.twoFactor.ConfirmEnrollment(ctx, userID, authenticatorCode(t, enr.Secret, env.clock.Now())))
	return enr.Secret
}

func TestTwoFactor_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "kody", "kody@example.com", "kodylovesyou")

	enr, err := env.twoFactor.BeginEnrollment(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enr.KeyURI, "otpauth://totp/"))
	assert.Contains(t, enr.KeyURI, "kody@example.com")

	enabled, err := env.twoFactor.IsEnabled(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, enabled, "pending enrollment is not enabled")

	require.NoError(t, env.twoFactor.ConfirmEnrollment(ctx, user.ID, authenticatorCode(t, enr.Secret, env.clock.Now())))

	enabled, err = env.twoFactor.IsEnabled(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 1, env.store.Verifications().Len(), "pending row replaced by the persistent one")

	// The persistent secret survives time and repeated use.
	env.clock.Advance(90 * 24 * time.Hour)
	for i := 0; i < 2; i++ {
		code := authenticatorCode(t, enr.Secret, env.clock.Now())
		require.NoError(t, env.verifications.Verify(ctx, model.VerificationTwoFA, user.ID, code))
	}

	require.NoError(t, env.twoFactor.Disable(ctx, user.ID))
	enabled, err = env.twoFactor.IsEnabled(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTwoFactor_ConfirmWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "kody", "kody@example.com", "kodylovesyou")

	enr, err := env.twoFactor.BeginEnrollment(ctx, user.ID)
	require.NoError(t, err)

	code := authenticatorCode(t, enr.Secret, env.clock.Now().Add(time.Hour))
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		if code == authenticatorCode(t, enr.Secret, env.clock.Now().Add(d)) {
			t.Skip("codes collided")
		}
	}
	assert.ErrorIs(t, env.twoFactor.ConfirmEnrollment(ctx, user.ID, code), ErrInvalidOrExpiredCode)
}

func TestTwoFactor_EnrollmentExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "kody", "kody@example.com", "kodylovesyou")

	enr, err := env.twoFactor.BeginEnrollment(ctx, user.ID)
	require.NoError(t, err)

	env.clock.Advance(EnrollmentWindow)
	code := authenticatorCode(t, enr.Secret, env.clock.Now())
	assert.ErrorIs(t, env.twoFactor.ConfirmEnrollment(ctx, user.ID, code), ErrInvalidOrExpiredCode)
}

func TestTwoFactor_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.twoFactor.BeginEnrollment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
