package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

// JwtIssuer signs and verifies HS256 session tokens. It holds no per-session
// state; a token is valid until it expires.
type JwtIssuer struct {
	secret   []byte
	lifespan time.Duration
	now      func() time.Time
}

func NewJwtIssuer(secret string, lifespan time.Duration) *JwtIssuer {
	if lifespan <= 0 {
		lifespan = 24 * time.Hour
	}
	return &JwtIssuer{secret: []byte(secret), lifespan: lifespan, now: time.Now}
}

// WithClock returns a copy of the issuer that stamps tokens using now.
func (j *JwtIssuer) WithClock(now func() time.Time) *JwtIssuer {
	cp := *j
	cp.now = now
	return &cp
}

func (j *JwtIssuer) Lifespan() time.Duration {
	return j.lifespan
}

func (j *JwtIssuer) JwtGenerate(id, email, name, role string) (string, error) {
	issuedAt := j.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:    id,
		Email: email,
		Name:  name,
		Role:  role,
		StandardClaims: jwt.StandardClaims{
			Subject:   id,
			ExpiresAt: issuedAt.Add(j.lifespan).Unix(),
			IssuedAt:  issuedAt.Unix(),
		},
	})

	token, err := t.SignedString(j.secret)
	if err != nil {
		return "", err
	}
	return token, nil
}

// JwtValidate returns ErrUnauthenticated for an empty token and ErrInvalidToken
// for anything that does not verify (signature, algorithm, expiry, shape).
func (j *JwtIssuer) JwtValidate(token string) (*JwtCustomClaim, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}
	claims := &JwtCustomClaim{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
