package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parking_network/internal/domain"
)

var ErrTokenInvalid = errors.New("token is invalid or expired")

// AuthService issues and validates the bearer tokens that carry the acting
// identity. Account storage and passwords live with the account service.
type AuthService struct {
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (s *AuthService) IssueToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      actor.UserID,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
		"role":     string(actor.Role),
		"username": actor.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a bearer token into the Actor it names.
func (s *AuthService) ValidateToken(tokenString string) (domain.Actor, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Actor{}, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Actor{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return domain.Actor{}, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return domain.Actor{}, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	actor := domain.Actor{UserID: sub, Username: username, Role: domain.ActorRole(role)}
	switch actor.Role {
	case domain.ActorAdmin, domain.ActorManager, domain.ActorUser:
	default:
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, role)
	}
	if actor.Username == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing username", ErrTokenInvalid)
	}
	return actor, nil
}
