package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/trendora/api/internal/platform/config"
)

// FirebaseVerifier verifies Firebase ID tokens through the Admin SDK.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// VerifyIDToken maps Admin SDK failures onto ErrTokenExpired and ErrTokenInvalid.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	token, err := v.client.VerifyIDToken(ctx, idToken)
	switch {
	case err == nil:
		return token, nil
	case firebaseauth.IsIDTokenExpired(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case firebaseauth.IsIDTokenInvalid(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	default:
		return nil, err
	}
}
