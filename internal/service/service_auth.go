package service

import (
	"context"

	"github.com/escrowd/room-keys-server/internal/config"
	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/utils"
	"github.com/escrowd/room-keys-server/models"
)

// authService is the concrete implementation of AuthService. The server only
// consumes tokens; issuing them is the business of the homeserver's login
// flow, which shares the signing key and issuer configured here.
type authService struct {
	// tokenSignKey is the HMAC secret used to verify JWT signatures.
	tokenSignKey string

	// tokenIssuer is the expected "iss" claim. Tokens from other issuers are
	// rejected during parsing.
	tokenIssuer string

	logger *logger.Logger
}

// NewAuthService constructs an AuthService populated with the token
// verification parameters from cfg.
//
// The returned service is safe for concurrent use; all state is read-only
// after construction.
func NewAuthService(cfg config.App, logger *logger.Logger) AuthService {
	return &authService{
		tokenSignKey: cfg.TokenSignKey,
		tokenIssuer:  cfg.TokenIssuer,
		logger:       logger,
	}
}

// ParseToken validates and parses a raw JWT string.
//
// It delegates to utils.ValidateAndParseJWTToken, verifying the signature,
// expiry and the issuer claim. Any validation failure (expired, wrong issuer,
// malformed, non-Matrix subject) is normalised to ErrTokenIsExpiredOrInvalid
// so that callers do not need to inspect low-level JWT errors.
func (a *authService) ParseToken(ctx context.Context, tokenString string) (models.Token, error) {
	token, err := utils.ValidateAndParseJWTToken(tokenString, a.tokenSignKey, a.tokenIssuer)
	if err != nil {
		logger.FromContext(ctx).Debug().Err(err).Msg("token validation failed")
		return models.Token{}, ErrTokenIsExpiredOrInvalid
	}

	return token, nil
}
