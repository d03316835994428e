package github

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.InstallationTokenExchanger = (*TokenExchanger)(nil)

const (
	// assertionLifetime is the maximum GitHub accepts for an app JWT.
	assertionLifetime = 10 * time.Minute
	// clockSkew backdates iat to tolerate drift between us and GitHub.
	clockSkew = 60 * time.Second
)

// AppSigner produces the RS256 app assertion used to request installation
// tokens.
type AppSigner struct {
	appID int64
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppSigner parses a PKCS#1 or PKCS#8 PEM private key.
func NewAppSigner(appID int64, pemKey []byte) (*AppSigner, error) {
	if appID <= 0 {
		return nil, errors.New("github app id must be positive")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse github app private key: %w", err)
	}
	return &AppSigner{appID: appID, key: key, now: time.Now}, nil
}

// Sign returns an assertion valid for ten minutes, issued by the app.
func (s *AppSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		Issuer:    strconv.FormatInt(s.appID, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign app assertion: %w", err)
	}
	return signed, nil
}

// TokenExchanger implements driven.InstallationTokenExchanger against
// POST /app/installations/{id}/access_tokens.
type TokenExchanger struct {
	signer         *AppSigner
	installationID int64
	httpClient     *http.Client
	baseURL        *url.URL
	now            func() time.Time
}

// NewTokenExchanger creates an exchanger for one installation. An empty
// baseURL selects DefaultBaseURL.
func NewTokenExchanger(signer *AppSigner, installationID int64, baseURL string, httpClient *http.Client) (*TokenExchanger, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenExchanger{
		signer:         signer,
		installationID: installationID,
		httpClient:     httpClient,
		baseURL:        u,
		now:            time.Now,
	}, nil
}

// Exchange signs a fresh assertion and trades it for an installation token.
func (e *TokenExchanger) Exchange(ctx context.Context) (model.AccessToken, error) {
	assertion, err := e.signer.Sign()
	if err != nil {
		return model.AccessToken{}, err
	}

	client := gh.NewClient(e.httpClient).WithAuthToken(assertion)
	client.BaseURL = e.baseURL

	tok, resp, err := client.Apps.CreateInstallationToken(ctx, e.installationID, nil)
	if err != nil {
		return model.AccessToken{}, upstreamError(ctx, fmt.Sprintf("create installation token %d", e.installationID), resp, err)
	}
	if tok.GetToken() == "" {
		return model.AccessToken{}, &model.UpstreamError{
			Service: "github",
			Op:      "create installation token",
			Err:     errors.New("response carried no token"),
		}
	}

	return model.AccessToken{
		Value:     tok.GetToken(),
		ExpiresAt: tok.GetExpiresAt().Time.UTC(),
		CreatedAt: e.now().UTC(),
	}, nil
}
