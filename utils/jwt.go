package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const eventSourceIssuer = "foodshare-notify"

var errInvalidSourceToken = NewUnauthorizedError("Invalid authentication token")

// JWTService signs and checks the HS256 tokens event sources present on the
// ingest endpoints. There are no end-user sessions in this service.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
}

type Claims struct {
	Source string `json:"source"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		ttl:       24 * time.Hour,
	}
}

// GenerateSourceToken issues a token for an event source such as the
// database trigger or an internal job.
func (j *JWTService) GenerateSourceToken(source string) (string, error) {
	now := time.Now()

	claims := Claims{
		Source: source,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    eventSourceIssuer,
			Subject:   source,
			ID:        GenerateUUID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken returns an AUTHENTICATION_ERROR service error for any token
// that is not a live, correctly signed event source token.
func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(eventSourceIssuer))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSourceToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.Source == "" {
			return nil, fmt.Errorf("%w: token has no source", errInvalidSourceToken)
		}
		return claims, nil
	}

	return nil, errInvalidSourceToken
}
