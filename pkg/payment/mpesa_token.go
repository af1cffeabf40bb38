package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenPath          = "/oauth/v1/generate?grant_type=client_credentials"
	defaultTokenTTL    = 3599 * time.Second
	maxResponseBytes   = 1 << 20
	sharedTokenTimeout = 2 * time.Second
)

// TokenCache is the subset of cache.RedisCache used to share tokens between instances.
type TokenCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type TokenSourceConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// EarlyExpiry refreshes a token this long before the provider expires it.
	EarlyExpiry time.Duration
	// Cache and CacheKey are optional.
	Cache    TokenCache
	CacheKey string
}

// NewMpesaTokenSource returns a token source for the Daraja client-credentials endpoint.
// Tokens are reused in-process until EarlyExpiry before expiry and, when a cache is
// configured, shared through it.
func NewMpesaTokenSource(config *TokenSourceConfig, httpClient *http.Client) oauth2.TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var src oauth2.TokenSource = &clientCredentialsSource{
		client:         httpClient,
		url:            config.BaseURL + tokenPath,
		consumerKey:    config.ConsumerKey,
		consumerSecret: config.ConsumerSecret,
		now:            time.Now,
	}

	if config.Cache != nil && config.CacheKey != "" {
		src = &sharedTokenSource{
			base:        src,
			cache:       config.Cache,
			key:         config.CacheKey,
			earlyExpiry: config.EarlyExpiry,
			now:         time.Now,
		}
	}

	return oauth2.ReuseTokenSourceWithExpiry(nil, src, config.EarlyExpiry)
}

type clientCredentialsSource struct {
	client         *http.Client
	url            string
	consumerKey    string
	consumerSecret string
	now            func() time.Time
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func (s *clientCredentialsSource) Token() (*oauth2.Token, error) {
	if s.consumerKey == "" || s.consumerSecret == "" {
		return nil, ErrMissingCredentials
	}

	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &TokenRequestError{Err: err}
	}
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TokenRequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if payload.AccessToken == "" {
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Body: string(body), Err: errors.New("empty access_token")}
	}

	ttl := defaultTokenTTL
	if seconds, err := payload.ExpiresIn.Int64(); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(ttl),
	}, nil
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// sharedTokenSource consults the cache before asking the provider. Cache failures are
// not fatal; the provider is always the fallback.
type sharedTokenSource struct {
	base        oauth2.TokenSource
	cache       TokenCache
	key         string
	earlyExpiry time.Duration
	now         func() time.Time
}

func (s *sharedTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sharedTokenTimeout)
	defer cancel()

	var cached cachedToken
	if err := s.cache.Get(ctx, s.key, &cached); err == nil && cached.AccessToken != "" &&
		cached.Expiry.After(s.now().Add(s.earlyExpiry)) {
		return &oauth2.Token{
			AccessToken: cached.AccessToken,
			TokenType:   "Bearer",
			Expiry:      cached.Expiry,
		}, nil
	}

	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if ttl := token.Expiry.Sub(s.now()) - s.earlyExpiry; ttl > 0 {
		_ = s.cache.Set(ctx, s.key, cachedToken{AccessToken: token.AccessToken, Expiry: token.Expiry}, ttl)
	}

	return token, nil
}
