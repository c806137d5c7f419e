// Package auth produces the authenticated HTTP client used by the Gmail
// adapter. The OAuth2 installed-app dance itself is deliberately thin; the
// rest of the system treats the result as an opaque session capability.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"mail-cli/internal/config"
	"mail-cli/pkg/mailerr"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

var scopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
	gmail.GmailLabelsScope,
}

// GetClient returns an authenticated HTTP client backed by the cached token,
// refreshing it transparently. It never starts an interactive flow; when no
// usable token exists the caller gets NotAuthorized with a re-auth hint.
func GetClient(ctx context.Context) (*http.Client, error) {
	cfg, err := oauthConfig()
	if err != nil {
		return nil, err
	}

	tok, err := loadToken()
	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeNotAuthorized, err, "no cached OAuth token").
			WithHint("Run 'mail verify' after placing credentials.json in the config directory.")
	}

	// Persist refreshed tokens so the next invocation skips the refresh.
	source := cfg.TokenSource(ctx, tok)

	return oauth2.NewClient(ctx, &savingTokenSource{src: source, last: tok}), nil
}

// Authorize runs the installed-app flow interactively and caches the token.
func Authorize(ctx context.Context) error {
	cfg, err := oauthConfig()
	if err != nil {
		return err
	}

	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in a browser, then paste the authorization code:\n%v\n> ", url)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return mailerr.Wrap(mailerr.CodeNotAuthorized, err, "token exchange failed")
	}

	return saveToken(tok)
}

func oauthConfig() (*oauth2.Config, error) {
	credPath, err := config.CredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeNotAuthorized, err, "unable to read %s", credPath).
			WithHint("Download OAuth client credentials from Google Cloud Console into the config directory.")
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials file: %w", err)
	}

	return cfg, nil
}

func loadToken() (*oauth2.Token, error) {
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("unable to parse cached token: %w", err)
	}

	return &tok, nil
}

func saveToken(tok *oauth2.Token) error {
	tokenPath, err := config.TokenPath()
	if err != nil {
		return err
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("unable to marshal token: %w", err)
	}

	return config.WriteFileAtomic(tokenPath, data)
}

// savingTokenSource writes the token back to disk whenever a refresh
// produces a new access token.
type savingTokenSource struct {
	src  oauth2.TokenSource
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		s.last = tok

		if err := saveToken(tok); err != nil {
			slog.Warn("failed to persist refreshed token", "error", err)
		}
	}

	return tok, nil
}
