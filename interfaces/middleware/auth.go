package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// IIdentityVerifier turns a bearer token into the caller's user id.
type IIdentityVerifier interface {
	Verify(ctx context.Context, bearer string) (string, error)
}

var ErrNoSubject = errors.New("token carries no user id")

// JWTVerifier accepts HS256 tokens signed with the application secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secretKey string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secretKey)}
}

// Verify returns the subject claim, falling back to the issuer.
func (v *JWTVerifier) Verify(_ context.Context, bearer string) (string, error) {
	var claims model.UserClaims
	token, err := jwt.ParseWithClaims(bearer, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.Issuer != "" {
		return claims.Issuer, nil
	}
	return "", ErrNoSubject
}

// Auth rejects requests without a verifiable bearer token and sets "user_id".
func Auth(verifier IIdentityVerifier) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		authorization := ctx.Request.Header.Get("Authorization")
		bearer, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || strings.TrimSpace(bearer) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		userID, err := verifier.Verify(ctx.Request.Context(), strings.TrimSpace(bearer))
		if err != nil {
			res.ResponseMessage = abortMessage(err)
			logger.GetLogger().WithField("error", err).Debug("bearer token rejected")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		ctx.Set("user_id", userID)
		ctx.Next()
	}
}

func abortMessage(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return "That's not even a token"
		case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
			return "Timing is everything"
		}
	}
	if errors.Is(err, ErrNoSubject) {
		return ErrNoSubject.Error()
	}
	return "Unauthorized"
}
