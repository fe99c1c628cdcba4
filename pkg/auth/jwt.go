package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "rental-bookings-api"

// Claims identify a wallet session. Wallet is the caller identity used for
// guest/host resolution.
type Claims struct {
	Wallet  string `json:"wallet"`
	ChainID int64  `json:"chain_id"`
	jwt.RegisteredClaims
}

func NewWalletSession(wallet string, chainID int64, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Wallet:  wallet,
		ChainID: chainID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(audience))
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Wallet == "" {
		return nil, errors.New("token has no wallet")
	}
	return claims, nil
}
