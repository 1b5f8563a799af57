package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"expenses/internal/core"
)

var ErrGoogleNotConfigured = errors.New("google sign-in is not configured")

// GoogleProfile is the identity extracted from a verified Google ID token.
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Locale        string
}

// GoogleVerifier verifies a Google ID token issued for this application.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleProfile, error)
}

// IDTokenVerifier checks tokens against Google's published keys with the
// OAuth client id as audience.
type IDTokenVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewIDTokenVerifier(ctx context.Context, clientID string, opts ...option.ClientOption) (*IDTokenVerifier, error) {
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (*GoogleProfile, error) {
	if v == nil || v.clientID == "" {
		return nil, core.NewError(core.KindValidation, "Google sign-in is not available", ErrGoogleNotConfigured)
	}
	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, core.NewError(core.KindInvalidToken, "Invalid Google token", err)
	}
	return ProfileFromClaims(payload.Subject, payload.Claims), nil
}

// ProfileFromClaims maps ID token claims onto a GoogleProfile.
func ProfileFromClaims(subject string, claims map[string]any) *GoogleProfile {
	str := func(k string) string {
		s, _ := claims[k].(string)
		return s
	}
	verified := false
	switch v := claims["email_verified"].(type) {
	case bool:
		verified = v
	case string:
		verified = strings.EqualFold(v, "true")
	}
	return &GoogleProfile{
		Subject:       subject,
		Email:         core.NormalizeEmail(str("email")),
		EmailVerified: verified,
		Name:          str("name"),
		Picture:       str("picture"),
		Locale:        str("locale"),
	}
}
