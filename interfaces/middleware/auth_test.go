package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crosspost/domain/dto"
	"crosspost/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims model.UserClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(NewJWTVerifier(testSecret)), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func call(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_SubjectBecomesUserID(t *testing.T) {
	token := sign(t, model.UserClaims{StandardClaims: jwt.StandardClaims{
		Subject: "user-42", Issuer: "legacy", ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}, testSecret)

	w := call(newAuthRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", w.Body.String())
}

func TestAuth_IssuerFallback(t *testing.T) {
	token := sign(t, model.UserClaims{StandardClaims: jwt.StandardClaims{Issuer: "user-7"}, UserName: "bob"}, testSecret)

	w := call(newAuthRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", w.Body.String())
}

func TestAuth_Rejections(t *testing.T) {
	expired := sign(t, model.UserClaims{StandardClaims: jwt.StandardClaims{
		Subject: "u", ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}}, testSecret)
	wrongKey := sign(t, model.UserClaims{StandardClaims: jwt.StandardClaims{Subject: "u"}}, "other")
	noSubject := sign(t, model.UserClaims{UserName: "bob"}, testSecret)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Unauthorized"},
		{"not bearer", "Basic abc", "Unauthorized"},
		{"malformed", "Bearer not-a-jwt", "That's not even a token"},
		{"expired", "Bearer " + expired, "Timing is everything"},
		{"wrong key", "Bearer " + wrongKey, "Unauthorized"},
		{"no subject", "Bearer " + noSubject, ErrNoSubject.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(newAuthRouter(), tc.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			var res dto.Res
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "401", res.ResponseCode)
			assert.Equal(t, tc.message, res.ResponseMessage)
		})
	}
}
