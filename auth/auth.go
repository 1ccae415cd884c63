// Package auth issues and verifies the bearer tokens that guard content
// mutations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-content-cache/content"
)

// Messages returned with Unauthorized errors.
const (
	MsgBadCredentials = "Неверный логин или пароль"
	MsgUnauthorized   = "Unauthorized"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// User is an account allowed to log in. PasswordHash is a bcrypt hash.
type User struct {
	Login        string `mapstructure:"login"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// Config configures token signing and the known users.
type Config struct {
	// Secret signs HS256 tokens. It must be at least 16 bytes.
	Secret string `mapstructure:"secret"`
	// TokenTTL defaults to DefaultTokenTTL.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Users    []User        `mapstructure:"users"`
}

// Claims are the registered claims plus the user's role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Login string
	Role  string
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token    string `json:"token"`
	UserRole string `json:"userRole"`
}

// Authenticator checks credentials and tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]User
	now    func() time.Time
}

// New validates cfg and indexes users by login.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) < 16 {
		return nil, fmt.Errorf("auth: secret must be at least 16 bytes")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Login == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("auth: user entries need login and password_hash")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: user %q: invalid bcrypt hash: %w", u.Login, err)
		}
		users[u.Login] = u
	}

	return &Authenticator{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}, nil
}

// Login checks the password and issues a token. Unknown logins and wrong
// passwords produce the same error.
func (a *Authenticator) Login(ctx context.Context, login, password string) (LoginResult, error) {
	user, ok := a.users[login]
	if !ok {
		return LoginResult{}, content.Unauthorized(MsgBadCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, content.Unauthorized(MsgBadCredentials)
	}

	token, err := a.Issue(user)
	if err != nil {
		return LoginResult{}, content.Internal("Internal server error", err)
	}
	return LoginResult{Token: token, UserRole: user.Role}, nil
}

// Issue signs an HS256 token for user.
func (a *Authenticator) Issue(user User) (string, error) {
	now := a.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a raw token and returns the identity it carries.
func (a *Authenticator) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, content.Wrap(content.KindUnauthorized, MsgUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, content.Unauthorized(MsgUnauthorized)
	}
	return Identity{Login: claims.Subject, Role: claims.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

var errMissingToken = content.Unauthorized(MsgUnauthorized)

// HashPassword returns a bcrypt hash suitable for Config.Users.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
