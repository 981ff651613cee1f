package security

import (
	"context"
	"errors"
	"fmt"
	"time"
	"timetrack/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimUserID   = "_id"
	claimUsername = "username"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = NewTokenAuth(config.AppConfig.JWTKey)
}

func NewTokenAuth(secret []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", secret, nil)
}

// GenerateToken signs {_id, username, iat}. There is deliberately no exp
// claim; tokens stay valid until the signing secret changes.
func GenerateToken(ja *jwtauth.JWTAuth, userID, username string) (string, error) {
	claims := jwt.MapClaims{
		claimUserID:   userID,
		claimUsername: username,
		"iat":         time.Now().Unix(),
	}
	_, tokenString, err := ja.Encode(claims)
	return tokenString, err
}

// ParseToken verifies the signature and returns the token's claims.
func ParseToken(ja *jwtauth.JWTAuth, tokenString string) (jwt.MapClaims, error) {
	token, err := jwtauth.VerifyToken(ja, tokenString)
	if err != nil {
		return nil, err
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read token claims: %w", err)
	}
	return claims, nil
}

// Helper functions to extract claims, can be used in middleware or services
func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims[claimUserID].(string)
	if !ok || id == "" {
		return "", errors.New("_id claim is missing or not a string")
	}
	return id, nil
}

func GetUsernameFromClaims(claims jwt.MapClaims) (string, error) {
	username, ok := claims[claimUsername].(string)
	if !ok {
		return "", errors.New("username claim is missing or not a string")
	}
	return username, nil
}
