package models

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Token wraps a JWT access token with convenience accessors used by the
// authentication middleware.
//
// It embeds [jwt.Token] for low-level token operations (signing, parsing)
// and [jwt.RegisteredClaims] for standard claim access (subject, expiry, etc.).
//
// SignedString holds the compact serialized form of the token
// (header.payload.signature) ready to be transmitted in HTTP headers.
//
// UserID is a cached copy of the "sub" (subject) claim: the Matrix user ID
// the token was issued for. It is populated after a successful call to
// [Token.GetUserID] or during token construction.
type Token struct {
	// Token is the underlying JWT token used for signing and claim inspection.
	// Excluded from JSON serialization because only the compact string form
	// is meaningful outside the server process.
	*jwt.Token `json:"-"`

	// RegisteredClaims provides access to the standard JWT claim set
	// (sub, exp, iat, nbf, iss, aud, jti) as defined by RFC 7519.
	jwt.RegisteredClaims

	// SignedString is the compact JWS representation of the token.
	SignedString string `json:"-"`

	// UserID is the Matrix user ID extracted from the "sub" claim.
	UserID string `json:"-"`
}

// GetUserID extracts the Matrix user ID from the token's "sub" claim.
//
// The subject must be non-empty and have the "@localpart:domain" shape; the
// localpart and domain themselves are not validated further — the token
// issuer (the homeserver) is trusted for that.
func (t *Token) GetUserID() (string, error) {
	userID, err := t.GetSubject()
	if err != nil {
		return "", errors.New("error extracting user ID from token: " + err.Error())
	}

	if !strings.HasPrefix(userID, "@") || !strings.Contains(userID, ":") {
		return "", errors.New("token subject is not a Matrix user ID")
	}

	return userID, nil
}

// String returns the compact serialized form of the token.
func (t *Token) String() string {
	return t.SignedString
}
