package credential

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for tokens that are not JWTs. Such tokens are still valid bearer values.
var ErrNotJWT = errors.New("credential: token is not a JWT")

// Claims is what the client can read out of a token without the signing key.
type Claims struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that lies before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the token's claims without checking its signature.
// The result is informational only; the server stays the authority on validity.
func Inspect(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, ErrNotJWT
	}
	var out Claims
	switch sub := mc["sub"].(type) {
	case string:
		out.Subject = sub
	case float64:
		out.Subject = strconv.FormatInt(int64(sub), 10)
	}
	if role, ok := mc["role"].(string); ok {
		out.Role = Role(role)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
