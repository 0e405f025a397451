package user

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
)

const tokenAudience = "academy"

var ErrInvalidSessionToken = errors.New("invalid or expired jwt")

// Claims represents the authorization claims transmitted via a JWT.
// IsAdmin is a snapshot taken when the token was issued: it may be stale.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	IsStudent    bool   `json:"student,omitempty"` // -> STUDENT PORTAL
	IsAdmin      bool   `json:"admin,omitempty"`   // -> ADMIN PORTAL
}

func NewClaims(usr User, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Name:         usr.DisplayName,
		IsStudent:    usr.IsStudent(),
		IsAdmin:      usr.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its Claims.
func ParseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSessionToken
	}
	if !claims.VerifyAudience(tokenAudience, true) {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}
