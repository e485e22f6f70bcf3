package googleauth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ErrMissingIDToken is returned when the token response has no id_token
var ErrMissingIDToken = errors.New("token response has no id_token")

// ExchangerConfig holds the OAuth2 client settings
type ExchangerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HostedDomain string

	// Endpoint overrides the Google endpoints, used by tests.
	Endpoint *oauth2.Endpoint
}

// Exchanger runs the authorization code flow against Google.
type Exchanger struct {
	oauth2Config *oauth2.Config
	hostedDomain string
}

// NewExchanger creates a code exchanger for Google sign-in
func NewExchanger(cfg ExchangerConfig) *Exchanger {
	endpoint := endpoints.Google
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	return &Exchanger{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		hostedDomain: cfg.HostedDomain,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (e *Exchanger) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("prompt", "select_account"),
	}
	if e.hostedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", e.hostedDomain))
	}
	return e.oauth2Config.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for the Google ID token.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := e.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrMissingIDToken
	}

	return idToken, nil
}
