package simhost

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for an unknown account or wrong password.
var ErrBadCredentials = errors.New("invalid credentials")

// Claims holds the JWT claims for an authenticated player.
type Claims struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	jwt.RegisteredClaims
}

// AuthService checks account passwords and issues tokens bound to the
// player's identity.
type AuthService struct {
	h      *Host
	jwtKey []byte
}

// NewAuthService creates an auth service. If jwtSecret is empty, a random
// 32-byte key is generated and tokens do not survive a restart.
func NewAuthService(h *Host, jwtSecret string) *AuthService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	return &AuthService{h: h, jwtKey: key}
}

// Authenticate checks name and password against the configured accounts.
func (a *AuthService) Authenticate(name, password string) (config.Account, error) {
	acct, ok := a.h.Config().Account(strings.TrimSpace(name))
	if !ok {
		return config.Account{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(password)); err != nil {
		return config.Account{}, ErrBadCredentials
	}
	return acct, nil
}

// Login authenticates an account and returns a signed token.
func (a *AuthService) Login(name, password string) (string, error) {
	acct, err := a.Authenticate(name, password)
	if err != nil {
		return "", err
	}
	id := AccountID(acct)
	now := time.Now()
	claims := Claims{
		PlayerID:   id.String(),
		PlayerName: acct.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.h.Config().TokenExpiry())),
			Issuer:    "localchat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtKey)
}

// ValidateToken parses and validates a token string.
func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Account returns the configured account a token was issued for.
func (a *AuthService) Account(c *Claims) (config.Account, error) {
	acct, ok := a.h.Config().Account(c.PlayerName)
	if !ok || AccountID(acct).String() != c.PlayerID {
		return config.Account{}, ErrBadCredentials
	}
	return acct, nil
}

// HashPassword returns the bcrypt hash to put in an account's password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GenerateJWTSecret generates a random hex-encoded secret suitable for jwt_secret config.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
