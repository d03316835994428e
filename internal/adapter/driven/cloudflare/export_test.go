package cloudflare

import "time"

// SetRetryInterval shortens the backoff so retry tests run fast.
func SetRetryInterval(c *Client, d time.Duration) {
	c.retryInitial = d
}
