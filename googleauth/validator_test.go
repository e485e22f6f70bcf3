package googleauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123.apps.googleusercontent.com"

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksServer(t *testing.T, pub *rsa.PublicKey, kid string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		jwks := JWKS{Keys: []JWK{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)
	return server
}

func validClaims() *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "1098765432",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:         "Ana.Perez@upb.edu.co",
		EmailVerified: true,
		HostedDomain:  "upb.edu.co",
		Name:          "Ana Perez",
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestNewValidator_Defaults(t *testing.T) {
	v := NewValidator(Config{ClientID: testClientID})

	assert.Equal(t, GoogleJWKSURL, v.jwksURL)
	assert.Equal(t, time.Hour, v.jwksCacheTTL)
	assert.NotNil(t, v.httpClient)
	assert.NotNil(t, v.keyCache)
}

func TestValidator_ValidateToken(t *testing.T) {
	key := generateTestKey(t)
	server := jwksServer(t, &key.PublicKey, "kid-1", nil)

	tests := []struct {
		name    string
		domain  string
		mutate  func(c *Claims)
		wantErr error
	}{
		{name: "valid token"},
		{name: "valid token in hosted domain", domain: "upb.edu.co"},
		{
			name:   "short issuer form",
			mutate: func(c *Claims) { c.Issuer = "accounts.google.com" },
		},
		{
			name:    "expired",
			mutate:  func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
			wantErr: ErrTokenExpired,
		},
		{
			name:    "foreign issuer",
			mutate:  func(c *Claims) { c.Issuer = "https://evil.example.com" },
			wantErr: ErrInvalidIssuer,
		},
		{
			name:    "other audience",
			mutate:  func(c *Claims) { c.Audience = jwt.ClaimStrings{"other-client"} },
			wantErr: ErrInvalidAudience,
		},
		{
			name:    "unverified email",
			mutate:  func(c *Claims) { c.EmailVerified = false },
			wantErr: ErrEmailNotVerified,
		},
		{
			name:    "outside hosted domain",
			domain:  "upb.edu.co",
			mutate:  func(c *Claims) { c.HostedDomain = "gmail.com" },
			wantErr: ErrHostedDomain,
		},
		{
			name:    "missing email",
			mutate:  func(c *Claims) { c.Email = "" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(Config{ClientID: testClientID, HostedDomain: tt.domain, JWKSURL: server.URL})
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}

			got, err := v.ValidateToken(context.Background(), sign(t, key, "kid-1", claims))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "1098765432", got.Subject)
			assert.Equal(t, "ana.perez@upb.edu.co", got.Email)
			assert.Equal(t, "Ana Perez", got.Name)
		})
	}
}

func TestValidator_RejectsForeignKey(t *testing.T) {
	key := generateTestKey(t)
	other := generateTestKey(t)
	server := jwksServer(t, &key.PublicKey, "kid-1", nil)
	v := NewValidator(Config{ClientID: testClientID, JWKSURL: server.URL})

	_, err := v.ValidateToken(context.Background(), sign(t, other, "kid-1", validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_UnknownKidRefreshesOnce(t *testing.T) {
	key := generateTestKey(t)
	var hits int32
	server := jwksServer(t, &key.PublicKey, "kid-1", &hits)
	v := NewValidator(Config{ClientID: testClientID, JWKSURL: server.URL})

	_, err := v.ValidateToken(context.Background(), sign(t, key, "kid-unknown", validClaims()))

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestValidator_CachesKeys(t *testing.T) {
	key := generateTestKey(t)
	var hits int32
	server := jwksServer(t, &key.PublicKey, "kid-1", &hits)
	v := NewValidator(Config{ClientID: testClientID, JWKSURL: server.URL})

	for i := 0; i < 3; i++ {
		_, err := v.ValidateToken(context.Background(), sign(t, key, "kid-1", validClaims()))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchJWKS_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := NewValidator(Config{ClientID: testClientID, JWKSURL: server.URL})
	_, err := v.FetchJWKS(context.Background())

	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}
