package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// defaultTokenLifetime is used when an ID token carries no readable exp claim.
const defaultTokenLifetime = time.Hour

// credentials are the signed-in account's tokens as stored in session.json.
type credentials struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// loadCredentials reads path. A missing file is reported as os.ErrNotExist.
func loadCredentials(path string) (*credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	if c.UID == "" || c.RefreshToken == "" {
		return nil, fmt.Errorf("invalid %s: missing uid or refresh token", filepath.Base(path))
	}
	return &c, nil
}

// save writes the credentials with mode 0600, replacing the file atomically.
func (c *credentials) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *credentials) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.IDToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// tokenExpiry reads the exp claim of an ID token. The signature is not
// checked; the token is only ever sent back to the issuer.
func tokenExpiry(idToken string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(defaultTokenLifetime)
}

// persistingSource wraps a refreshing token source and writes refreshed
// tokens back to the session file.
type persistingSource struct {
	cfg  *oauth2.Config
	ctx  context.Context
	path string
	log  *zap.Logger

	mu    sync.Mutex
	base  oauth2.TokenSource
	creds credentials
}

// newPersistingSource refreshes through cfg. ctx carries the HTTP client used
// for refresh requests and must outlive the source.
func newPersistingSource(ctx context.Context, cfg *oauth2.Config, creds credentials, path string, log *zap.Logger) *persistingSource {
	return &persistingSource{
		cfg:   cfg,
		ctx:   ctx,
		path:  path,
		log:   log,
		base:  cfg.TokenSource(ctx, creds.token()),
		creds: creds,
	}
}

// Token implements oauth2.TokenSource.
func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	tok, err := base.Token()
	if err != nil {
		return nil, err
	}
	return s.record(tok), nil
}

// Refresh renews an expired token with a request bound to ctx.
func (s *persistingSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	current := s.creds.token()
	s.mu.Unlock()

	tok, err := s.cfg.TokenSource(ctx, current).Token()
	if err != nil {
		return err
	}
	tok = s.record(tok)

	s.mu.Lock()
	s.base = s.cfg.TokenSource(s.ctx, tok)
	s.mu.Unlock()
	return nil
}

// record stores tok if it carries a new ID token and returns the token
// Firestore requests should use.
func (s *persistingSource) record(tok *oauth2.Token) *oauth2.Token {
	idToken := tok.AccessToken
	if v, ok := tok.Extra("id_token").(string); ok && v != "" {
		idToken = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idToken == s.creds.IDToken {
		return tok
	}
	s.creds.IDToken = idToken
	if tok.RefreshToken != "" {
		s.creds.RefreshToken = tok.RefreshToken
	}
	s.creds.Expiry = tok.Expiry
	if s.path != "" {
		if err := s.creds.save(s.path); err != nil {
			s.log.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}
	s.log.Debug("token refreshed", zap.Time("expiry", tok.Expiry))
	return &oauth2.Token{
		AccessToken:  idToken,
		TokenType:    "Bearer",
		RefreshToken: s.creds.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// account returns a copy of the current credentials.
func (s *persistingSource) account() credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}
