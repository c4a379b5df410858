package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"resumebuilder/api/internal/store"
)

var ErrGoogleCredential = errors.New("invalid Google credential")

const ProviderGoogle = "google"

// GoogleProfile is the identity carried by a verified Google ID token.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier checks Google Identity Services ID tokens issued for one
// OAuth client.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify validates the token signature, audience and expiry and returns the
// profile it names.
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (GoogleProfile, error) {
	payload, err := v.validate(ctx, credential, v.clientID)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("%w: %v", ErrGoogleCredential, err)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return GoogleProfile{}, fmt.Errorf("%w: email is not verified", ErrGoogleCredential)
	}
	profile := GoogleProfile{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	if profile.Subject == "" || profile.Email == "" {
		return GoogleProfile{}, fmt.Errorf("%w: token has no subject or email", ErrGoogleCredential)
	}
	return profile, nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

// GoogleLogin signs in the account bound to a verified Google profile. An
// account already linked to the subject gets its name and picture
// refreshed, a local account with the same email is linked, and otherwise
// a new Google account is created.
func (s *Service) GoogleLogin(ctx context.Context, profile GoogleProfile) (*Session, error) {
	if profile.Subject == "" || profile.Email == "" {
		return nil, ErrGoogleCredential
	}
	name := profile.Name
	if name == "" {
		name = profile.Email
	}

	user, err := s.store.GetUserByGoogleID(ctx, profile.Subject)
	switch {
	case err == nil:
		picture := profile.Picture
		if picture == "" {
			picture = user.ProfilePicture
		}
		user, err = s.store.UpdateUserProfile(ctx, user.Email, name, picture)
	case errors.Is(err, store.ErrNotFound):
		user, err = s.store.GetUserByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			user, err = s.store.LinkGoogleAccount(ctx, profile.Email, profile.Subject, profile.Picture)
		case errors.Is(err, store.ErrNotFound):
			user, err = s.store.CreateUser(ctx, store.User{
				Name:           name,
				Email:          profile.Email,
				GoogleID:       profile.Subject,
				ProfilePicture: profile.Picture,
				Role:           RoleUser,
				AuthProvider:   ProviderGoogle,
			})
		}
	}
	if err != nil {
		return nil, fmt.Errorf("google sign-in for %s: %w", profile.Email, err)
	}
	return s.signIn(user)
}
