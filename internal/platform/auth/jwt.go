package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
)

const jwtSubjectClaim = "id"

// JWTVerifier validates HS256 tokens signed with a shared secret. The user id is read from the
// "id" claim, falling back to "sub".
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ TokenVerifier = (*JWTVerifier)(nil)

// NewJWTVerifier constructs a verifier for secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// VerifyIDToken returns the claims shaped as a Firebase token so one middleware serves both modes.
func (v *JWTVerifier) VerifyIDToken(_ context.Context, raw string) (*firebaseauth.Token, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	uid, _ := claims[jwtSubjectClaim].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	token := &firebaseauth.Token{UID: uid, Subject: uid, Claims: map[string]any(claims)}
	if exp, ok := claims["exp"].(float64); ok {
		token.Expires = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		token.IssuedAt = int64(iat)
	}
	return token, nil
}
