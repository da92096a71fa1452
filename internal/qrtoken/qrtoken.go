// Package qrtoken signs and verifies the tokens printed on brewery check-in QR codes.
package qrtoken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const deepLinkPrefix = "brewedat://checkin/"

var ErrInvalidToken = errors.New("invalid qr token")

type Claims struct {
	BreweryID string `json:"bid"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type Issued struct {
	Token     string
	DeepLink  string
	ExpiresAt time.Time
}

func (s *Signer) Issue(breweryID uuid.UUID) (*Issued, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		BreweryID: breweryID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign qr token: %w", err)
	}

	return &Issued{
		Token:     token,
		DeepLink:  deepLinkPrefix + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify accepts either the bare token or the full deep link and returns the brewery it names.
func (s *Signer) Verify(raw string) (uuid.UUID, error) {
	if len(raw) > len(deepLinkPrefix) && raw[:len(deepLinkPrefix)] == deepLinkPrefix {
		raw = raw[len(deepLinkPrefix):]
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	breweryID, err := uuid.Parse(claims.BreweryID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: missing brewery", ErrInvalidToken)
	}
	return breweryID, nil
}

// RenderPNG encodes content as a base64 PNG QR image.
func RenderPNG(content string, size int) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
