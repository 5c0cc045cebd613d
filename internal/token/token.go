package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, forged and expired tokens alike.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the principal carried inside a bearer token. Admin tokens omit
// the user and device identifiers.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Admin    bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer tokens with HS256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds a token issuer from the shared secret and token lifetime.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a user token bound to a device.
func (i *Issuer) Issue(userID, deviceID, email string) (string, error) {
	return i.sign(Claims{UserID: userID, DeviceID: deviceID, Email: email})
}

// IssueAdmin signs an administrator token. Admin principals bypass device
// trust checks entirely.
func (i *Issuer) IssueAdmin(email string) (string, error) {
	return i.sign(Claims{Email: email, Admin: true})
}

// Verify parses the token, checks the signature and expiry, and returns the
// embedded claims.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) sign(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
