package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func echoClaims(t *testing.T) (http.Handler, *Claims) {
	t.Helper()
	captured := &Claims{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := FromContext(r.Context())
		require.NoError(t, err)
		*captured = *claims
		w.WriteHeader(http.StatusOK)
	}), captured
}

func TestAuthenticateDevToken(t *testing.T) {
	inner, captured := echoClaims(t)
	handler := Authenticate(Options{})(inner)

	subject := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+subject+"|admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, subject, captured.Subject)
	require.Equal(t, RoleAdmin, captured.Role)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	inner, _ := echoClaims(t)
	handler := Authenticate(Options{})(inner)

	for _, header := range []string{"", "Bearer ", "Bearer justasubject", "Bearer sub|superuser", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header=%q", header)
	}
}

func TestAuthenticateJWT(t *testing.T) {
	secret := []byte("test-secret")
	opts := Options{JWTSecret: secret, Issuer: "ecoledger-test", Audience: "ecoledger"}
	inner, captured := echoClaims(t)
	handler := Authenticate(opts)(inner)

	subject := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"iss":  "ecoledger-test",
		"aud":  "ecoledger",
		"role": "member",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, subject, captured.Subject)
	require.Equal(t, RoleMember, captured.Role)

	// Wrong signing key fails closed.
	badToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject, "iss": "ecoledger-test", "aud": "ecoledger", "role": "member",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	badSigned, err := badToken.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+badSigned)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	inner, _ := echoClaims(t)
	handler := Authenticate(Options{})(RequireRole(RoleAdmin)(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+uuid.NewString()+"|member")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+uuid.NewString()+"|admin")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
