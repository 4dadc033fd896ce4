package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

var errMissingToken = errors.New("missing id token")

// ExternalTokenClaims is the identity asserted by a verified provider token.
// Email is empty unless the provider vouches for it.
type ExternalTokenClaims struct {
	Issuer  string
	Subject string
	Email   string
}

// IDTokenVerifier checks a provider id token against the expected audience.
type IDTokenVerifier func(ctx context.Context, token, audience string) (*ExternalTokenClaims, error)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

func VerifyGoogleIDToken(ctx context.Context, token, audience string) (*ExternalTokenClaims, error) {
	if err := checkTokenArgs(token, audience); err != nil {
		return nil, err
	}

	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("unexpected google issuer %q", payload.Issuer)
	}

	claims := &ExternalTokenClaims{Issuer: payload.Issuer, Subject: payload.Subject}
	email, _ := payload.Claims["email"].(string)
	if verified, _ := payload.Claims["email_verified"].(bool); verified {
		claims.Email = normalizeEmail(email)
	}
	return claims, nil
}

func VerifyAppleIDToken(ctx context.Context, token, audience string) (*ExternalTokenClaims, error) {
	if err := checkTokenArgs(token, audience); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := validator.NewClient().VerifyIdToken(audience, token)
	if err != nil {
		return nil, fmt.Errorf("validate apple id token: %w", err)
	}
	if parsed.Iss != "https://appleid.apple.com" {
		return nil, fmt.Errorf("unexpected apple issuer %q", parsed.Iss)
	}

	return &ExternalTokenClaims{
		Issuer:  parsed.Iss,
		Subject: parsed.Sub,
		Email:   normalizeEmail(parsed.Email),
	}, nil
}

func checkTokenArgs(token, audience string) error {
	if strings.TrimSpace(token) == "" {
		return errMissingToken
	}
	if strings.TrimSpace(audience) == "" {
		return errors.New("missing audience")
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
