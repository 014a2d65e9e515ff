package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisitions-gateway/middleware/admission/domain"
)

var secret = []byte("test-secret")

func newRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://example/api/users", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func mint(t *testing.T, p domain.Principal, ttl time.Duration) string {
	t.Helper()
	tok, err := Mint(secret, p, "acquisitions", ttl)
	require.NoError(t, err)
	return tok
}

func TestJWTResolver_ValidBearerToken(t *testing.T) {
	res, err := NewHMACResolver(secret, WithIssuer("acquisitions"))
	require.NoError(t, err)

	want := domain.Principal{ID: "42", Role: domain.RoleAdmin, Email: "a@example.com"}
	p, err := res.Resolve(context.Background(), newRequest(t, mint(t, want, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, want, p)
	assert.True(t, p.Authenticated())
}

func TestJWTResolver_CookieFallback(t *testing.T) {
	res, err := NewHMACResolver(secret)
	require.NoError(t, err)

	r := newRequest(t, "")
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: mint(t, domain.Principal{ID: "7", Role: domain.RoleUser}, time.Hour)})

	p, err := res.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "7", p.ID)
	assert.Equal(t, domain.RoleUser, p.Role)
}

func TestJWTResolver_InvalidCredentialsYieldGuest(t *testing.T) {
	res, err := NewHMACResolver(secret, WithIssuer("acquisitions"))
	require.NoError(t, err)

	otherKey, err := Mint([]byte("other"), domain.Principal{ID: "1", Role: domain.RoleAdmin}, "acquisitions", time.Hour)
	require.NoError(t, err)
	otherIssuer, err := Mint(secret, domain.Principal{ID: "1", Role: domain.RoleAdmin}, "someone-else", time.Hour)
	require.NoError(t, err)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "1", Role: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"missing":        "",
		"malformed":      "not-a-jwt",
		"bad signature":  otherKey,
		"expired":        mint(t, domain.Principal{ID: "1", Role: domain.RoleAdmin}, -time.Minute),
		"wrong issuer":   otherIssuer,
		"alg none":       unsigned,
		"unknown role":   mint(t, domain.Principal{ID: "1", Role: "superuser"}, time.Hour),
		"missing userid": mint(t, domain.Principal{Role: domain.RoleAdmin}, time.Hour),
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := res.Resolve(context.Background(), newRequest(t, tok))
			require.NoError(t, err)
			assert.Equal(t, domain.Guest(), p)
			assert.False(t, p.Authenticated())
		})
	}
}

func TestJWTResolver_CanceledContextIsResolveError(t *testing.T) {
	res, err := NewHMACResolver(secret)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = res.Resolve(ctx, newRequest(t, mint(t, domain.Principal{ID: "1", Role: domain.RoleUser}, time.Hour)))
	assert.ErrorIs(t, err, domain.ErrResolve)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJWTResolver_SlowKeyLookupTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	res := newResolver(func(*jwt.Token) (any, error) {
		<-block
		return secret, nil
	}, []string{"HS256"}, WithResolveTimeout(20*time.Millisecond))

	_, err := res.Resolve(context.Background(), newRequest(t, mint(t, domain.Principal{ID: "1", Role: domain.RoleUser}, time.Hour)))
	assert.ErrorIs(t, err, domain.ErrResolve)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHMACResolver_RejectsEmptySecret(t *testing.T) {
	_, err := NewHMACResolver(nil)
	assert.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), domain.Principal{ID: "1", Role: domain.RoleUser})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", p.ID)
}
