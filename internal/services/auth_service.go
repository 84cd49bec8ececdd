package services

import (
	"forum-chat/config"
	chat_errors "forum-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService only validates access tokens issued by the forum's auth layer.
// Issuance, refresh and revocation live there; the chat core just needs the
// authenticated user id per request.
type AuthService struct {
	jwtSecret []byte
}

type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	return *claims, nil
}
