package firebase

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"

	"tasksync/internal/service"
)

// SignUp creates an email/password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (service.Session, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return service.Session{}, err
	}
	defer cancel()

	resp, err := c.auth.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return service.Session{}, wrapError(err)
	}

	creds := credentials{
		UID:          resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	if creds.RefreshToken == "" {
		// Older projects return the account without tokens; sign in to get them.
		return c.LogIn(ctx, email, password)
	}
	return c.signedIn(creds, email)
}

// LogIn signs in with email and password.
func (c *Client) LogIn(ctx context.Context, email, password string) (service.Session, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return service.Session{}, err
	}
	defer cancel()

	resp, err := c.auth.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return service.Session{}, wrapError(err)
	}

	return c.signedIn(credentials{
		UID:          resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, email)
}

func (c *Client) signedIn(creds credentials, email string) (service.Session, error) {
	if creds.UID == "" || creds.IDToken == "" {
		return service.Session{}, service.NetworkFailure("incomplete sign-in response", nil)
	}
	if creds.Email == "" {
		creds.Email = email
	}
	creds.Expiry = tokenExpiry(creds.IDToken, c.now())
	if err := c.install(creds); err != nil {
		// The account is signed in for this process even if it cannot be remembered.
		c.log.Warn("session not persisted", zap.Error(err))
	}
	c.log.Debug("signed in", zap.String("uid", creds.UID))
	return service.Session{UID: creds.UID, Email: creds.Email}, nil
}

// LogOut forgets the stored credentials. Firebase ID tokens cannot be
// revoked from the client, so no request is made.
func (c *Client) LogOut(ctx context.Context) error {
	return c.forget()
}

// RestoreSession loads the remembered account, refreshing its token if it
// has expired. A rejected refresh token removes the session file.
func (c *Client) RestoreSession(ctx context.Context) (*service.Session, error) {
	if c.sessionPath == "" {
		return nil, nil
	}
	creds, err := loadCredentials(c.sessionPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		c.log.Warn("discarding unreadable session", zap.Error(err))
		return nil, c.forget()
	}

	src := newPersistingSource(c.refreshCtx, c.oauth, *creds, c.sessionPath, c.log)
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()

	sess := &service.Session{UID: creds.UID, Email: creds.Email}
	if c.now().Before(creds.Expiry) {
		return sess, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapError(err)
	}
	tctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, c.refresh), c.timeout)
	defer cancel()
	if err := src.Refresh(tctx); err != nil {
		err = wrapError(err)
		if service.IsKind(err, service.KindAuth) {
			c.log.Info("stored session rejected", zap.Error(err))
			return nil, c.forget()
		}
		// Offline: keep the session; requests will retry the refresh.
		c.log.Warn("token refresh failed", zap.Error(err))
	}
	return sess, nil
}
