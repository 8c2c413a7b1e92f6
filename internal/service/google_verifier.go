package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
)

// GoogleIdentity is the verified subset of a Google id token.
type GoogleIdentity struct {
	Subject   string
	Email     string
	Name      string
	GivenName string
	Picture   string
}

// IdentityVerifier turns an id token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// tokenInfo is the subset of the tokeninfo response the service reads.
type tokenInfo struct {
	Sub       string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
	Aud       string `json:"aud"`
}

type googleVerifier struct {
	tokenInfoURL *url.URL
	clientID     string
	timeout      time.Duration
}

// NewGoogleVerifier creates a verifier that asks Google's tokeninfo endpoint
// to validate id tokens. An empty clientID skips the audience check.
// Tests can supply an *http.Client through the oauth2.HTTPClient context key.
func NewGoogleVerifier(tokenInfoURL, clientID string, timeout time.Duration) (IdentityVerifier, error) {
	endpoint, err := url.Parse(tokenInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: tokeninfo url: %w", apierrors.ErrConfig, err)
	}
	if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return nil, fmt.Errorf("%w: tokeninfo url %q must be an absolute http(s) url", apierrors.ErrConfig, tokenInfoURL)
	}

	return &googleVerifier{
		tokenInfoURL: endpoint,
		clientID:     clientID,
		timeout:      timeout,
	}, nil
}

func (v *googleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if idToken == "" {
		return nil, apierrors.ErrInvalidExternalToken
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	endpoint := *v.tokenInfoURL
	q := endpoint.Query()
	q.Set("id_token", idToken)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build tokeninfo request: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: idToken}))
	resp, err := client.Do(req)
	if err != nil {
		return nil, apierrors.ErrInvalidExternalToken
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apierrors.ErrInvalidExternalToken
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apierrors.ErrInvalidExternalToken
	}
	if info.Sub == "" || info.Email == "" {
		return nil, apierrors.ErrInvalidExternalToken
	}
	if v.clientID != "" && info.Aud != v.clientID {
		return nil, apierrors.ErrInvalidExternalToken
	}

	return &GoogleIdentity{
		Subject:   info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		GivenName: info.GivenName,
		Picture:   info.Picture,
	}, nil
}

var _ IdentityVerifier = (*googleVerifier)(nil)
