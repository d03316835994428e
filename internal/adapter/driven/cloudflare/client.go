// Package cloudflare implements the DNSProvider port on cloudflare-go,
// scoped to a single zone.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	cf "github.com/cloudflare/cloudflare-go"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DNSProvider = (*Client)(nil)

const (
	recordTypeCNAME = "CNAME"
	// autoTTL asks Cloudflare to pick the TTL.
	autoTTL = 1

	codeRecordNotFound = 81044

	findPageSize = 50

	maxRetries      = 3
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second

	// defaultRateLimit matches Cloudflare's 1200 requests per five minutes.
	defaultRateLimit = 4.0
)

// alreadyExistsCodes are the error codes Cloudflare returns when a record
// with the same name already exists.
var alreadyExistsCodes = []int{81053, 81057, 81058}

// apiError is satisfied by cloudflare-go's typed API errors.
type apiError interface {
	error
	Type() cf.ErrorType
	ErrorCodes() []int
	ErrorMessages() []string
}

// Client manages CNAME records in one Cloudflare zone.
type Client struct {
	api  *cf.API
	zone *cf.ResourceContainer
	now  func() time.Time

	retryInitial time.Duration
}

type options struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  float64
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a different API root. Tests use it with
// an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		if httpClient != nil {
			o.httpClient = httpClient
		}
	}
}

// WithRateLimit sets the client-side request rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps > 0 {
			o.rateLimit = rps
		}
	}
}

// NewClient creates a client for zoneID authenticated with a bearer apiToken.
// Every request is bounded by timeout.
func NewClient(zoneID, apiToken string, timeout time.Duration, opts ...Option) (*Client, error) {
	if zoneID == "" {
		return nil, &model.ValidationError{Field: "zone_id", Reason: "must not be empty"}
	}
	if apiToken == "" {
		return nil, &model.ValidationError{Field: "api_token", Reason: "must not be empty"}
	}

	o := options{rateLimit: defaultRateLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: timeout}
	}

	cfOpts := []cf.Option{
		cf.HTTPClient(o.httpClient),
		cf.UsingRateLimit(o.rateLimit),
		// Retries are driven by do() so they share one backoff policy.
		cf.UsingRetryPolicy(0, 0, 0),
	}
	if o.baseURL != "" {
		cfOpts = append(cfOpts, cf.BaseURL(o.baseURL))
	}

	api, err := cf.NewWithAPIToken(apiToken, cfOpts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}

	return &Client{
		api:          api,
		zone:         cf.ZoneIdentifier(zoneID),
		now:          time.Now,
		retryInitial: initialInterval,
	}, nil
}

// FindByName returns the id of the CNAME record named domain, or "".
func (c *Client) FindByName(ctx context.Context, domain string) (string, error) {
	var records []cf.DNSRecord
	err := c.do(ctx, "find "+domain, func() error {
		var err error
		records, _, err = c.api.ListDNSRecords(ctx, c.zone, cf.ListDNSRecordsParams{
			Type: recordTypeCNAME,
			Name: domain,
			// A single page; setting PerPage turns off auto-pagination.
			ResultInfo: cf.ResultInfo{PerPage: findPageSize},
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

// Create adds a CNAME record for domain pointing at target. When a record
// with that name already exists the result is degraded with a placeholder id.
func (c *Client) Create(ctx context.Context, domain, target string) (model.RecordResult, error) {
	params := cf.CreateDNSRecordParams{
		Type:    recordTypeCNAME,
		Name:    domain,
		Content: target,
		TTL:     autoTTL,
		Proxied: cf.BoolPtr(false),
	}

	var created cf.DNSRecord
	err := c.do(ctx, "create "+domain, func() error {
		var err error
		created, err = c.api.CreateDNSRecord(ctx, c.zone, params)
		return err
	})
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && alreadyExists(apiErr) {
			slog.Warn("cloudflare record already exists", "domain", domain, "reason", apiErr.Error())
			return model.NewDegradedRecord(domain, apiErr.Error(), c.now()), nil
		}
		return model.RecordResult{}, err
	}

	slog.Info("cloudflare record created", "domain", domain, "target", target, "record_id", created.ID)
	return model.NewCreatedRecord(created.ID, created.Name), nil
}

// Update rewrites the record. A record that no longer exists is not an error.
func (c *Client) Update(ctx context.Context, recordID, domain, target string) error {
	if recordID == "" {
		return &model.ValidationError{Field: "record_id", Reason: "must not be empty"}
	}

	params := cf.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    recordTypeCNAME,
		Name:    domain,
		Content: target,
		TTL:     autoTTL,
		Proxied: cf.BoolPtr(false),
	}
	err := c.do(ctx, "update "+domain, func() error {
		_, err := c.api.UpdateDNSRecord(ctx, c.zone, params)
		return err
	})
	if isMissing(err) {
		slog.Warn("cloudflare record to update not found", "record_id", recordID, "domain", domain)
		return nil
	}
	return err
}

// Delete removes the record. Empty or placeholder ids and records that are
// already gone are not errors.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	if recordID == "" || model.IsPlaceholderRecordID(recordID) {
		return nil
	}

	err := c.do(ctx, "delete "+recordID, func() error {
		return c.api.DeleteDNSRecord(ctx, c.zone, recordID)
	})
	if isMissing(err) {
		slog.Debug("cloudflare record already deleted", "record_id", recordID)
		return nil
	}
	return err
}

// DeleteByName deletes the CNAME record named domain, if any.
func (c *Client) DeleteByName(ctx context.Context, domain string) error {
	id, err := c.FindByName(ctx, domain)
	if err != nil {
		return err
	}
	if id == "" {
		slog.Debug("no cloudflare record to delete", "domain", domain)
		return nil
	}
	return c.Delete(ctx, id)
}

// do runs call, retrying transient failures with exponential backoff. The
// returned error is always a *model.UpstreamError.
func (c *Client) do(ctx context.Context, op string, call func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(&model.UpstreamError{Service: "cloudflare", Op: op, Err: err})
		}
		attempt++
		err := call()
		if err == nil {
			slog.Debug("cloudflare api call", "op", op, "attempt", attempt)
			return nil
		}

		upstream := classify(ctx, op, err)
		if !upstream.Transient {
			return backoff.Permanent(upstream)
		}
		slog.Debug("cloudflare call failed, retrying", "op", op, "attempt", attempt, "error", err)
		return upstream
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

// classify maps a cloudflare-go error onto the upstream error taxonomy. Typed
// API errors carry their class; anything else is a transport failure or an
// exhausted 429/5xx, both worth retrying unless the caller gave up.
func classify(ctx context.Context, op string, err error) *model.UpstreamError {
	upstream := &model.UpstreamError{Service: "cloudflare", Op: op, Err: err}

	apiErr, ok := asAPIError(err)
	if !ok {
		upstream.Transient = ctx.Err() == nil && !errors.Is(err, context.Canceled)
		return upstream
	}

	switch apiErr.Type() {
	case cf.ErrorTypeNotFound:
		upstream.StatusCode = http.StatusNotFound
	case cf.ErrorTypeRateLimit:
		upstream.StatusCode = http.StatusTooManyRequests
		upstream.Transient = true
	case cf.ErrorTypeService:
		upstream.StatusCode = http.StatusInternalServerError
		upstream.Transient = true
	case cf.ErrorTypeAuthentication:
		upstream.StatusCode = http.StatusUnauthorized
	case cf.ErrorTypeAuthorization:
		upstream.StatusCode = http.StatusForbidden
	default:
		upstream.StatusCode = http.StatusBadRequest
	}
	return upstream
}

func asAPIError(err error) (apiError, bool) {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func alreadyExists(err apiError) bool {
	for _, code := range err.ErrorCodes() {
		if slices.Contains(alreadyExistsCodes, code) {
			return true
		}
	}
	for _, msg := range err.ErrorMessages() {
		if strings.Contains(strings.ToLower(msg), "already exists") {
			return true
		}
	}
	return false
}

func isMissing(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Type() == cf.ErrorTypeNotFound || slices.Contains(apiErr.ErrorCodes(), codeRecordNotFound)
}
