package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-content-cache/content"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	a, err := New(Config{
		Secret:   testSecret,
		TokenTTL: time.Hour,
		Users:    []User{{Login: "admin", PasswordHash: string(hash), Role: "admin"}},
	})
	require.NoError(t, err)
	return a
}

func TestLogin(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	res, err := a.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.UserRole)
	assert.NotEmpty(t, res.Token)

	id, err := a.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, Identity{Login: "admin", Role: "admin"}, id)

	for _, creds := range [][2]string{{"admin", "wrong"}, {"ghost", "s3cret"}} {
		_, err := a.Login(ctx, creds[0], creds[1])
		require.Error(t, err)
		assert.True(t, content.IsKind(err, content.KindUnauthorized))
		var cerr *content.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, MsgBadCredentials, cerr.Message)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	a := newTestAuthenticator(t)
	good, err := a.Issue(User{Login: "admin", Role: "admin"})
	require.NoError(t, err)

	other, err := New(Config{Secret: "another-secret-of-32-bytes-long!"})
	require.NoError(t, err)
	foreign, err := other.Issue(User{Login: "admin", Role: "admin"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not.a.token",
		"wrong secret":   foreign,
		"alg none":       none,
		"missing expiry": noExpiry,
		"tampered":       good[:len(good)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			require.Error(t, err)
			assert.True(t, content.IsKind(err, content.KindUnauthorized))
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	a := newTestAuthenticator(t)
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issuedAt }

	token, err := a.Issue(User{Login: "admin"})
	require.NoError(t, err)

	_, err = a.Verify(token)
	require.NoError(t, err)

	a.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = a.Verify(token)
	assert.True(t, content.IsKind(err, content.KindUnauthorized))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer", "", true},
		{"Bearer   ", "", true},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Secret: "short"})
	assert.Error(t, err)

	_, err = New(Config{Secret: testSecret, Users: []User{{Login: "a", PasswordHash: "plain"}}})
	assert.Error(t, err, "plain text passwords are rejected")

	_, err = New(Config{Secret: testSecret, Users: []User{{Login: "a"}}})
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Login: "x", Role: "admin"})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", id.Role)
}
