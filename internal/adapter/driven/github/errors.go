package github

import (
	"context"
	"errors"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// upstreamError classifies a go-github failure. Rate limits, 5xx, network
// failures and timeouts are transient; a canceled context and other 4xx are
// permanent.
func upstreamError(ctx context.Context, op string, resp *gh.Response, err error) error {
	ue := &model.UpstreamError{Service: "github", Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		ue.StatusCode = resp.StatusCode
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		ue.Transient = true
		if ue.StatusCode == 0 {
			ue.StatusCode = http.StatusTooManyRequests
		}
	case ue.StatusCode != 0:
		ue.Transient = model.IsTransientStatus(ue.StatusCode)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		ue.Transient = false
	default:
		ue.Transient = true
	}
	return ue
}
