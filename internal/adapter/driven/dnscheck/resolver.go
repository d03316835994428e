// Package dnscheck resolves the live CNAME of a hostname so stored mappings
// can be compared with what the world actually sees.
package dnscheck

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CNAMEResolver = (*Resolver)(nil)

// DefaultServer is used when no resolver address is configured.
const DefaultServer = "1.1.1.1:53"

// Resolver queries a single upstream DNS server.
type Resolver struct {
	client *dns.Client
	server string
}

// NewResolver creates a resolver for server (host or host:port). Each query
// is bounded by timeout.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if server == "" {
		server = DefaultServer
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Resolver{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}
}

// LookupCNAME returns the CNAME target of domain without the trailing dot,
// or "" when the name has no CNAME record.
func (r *Resolver) LookupCNAME(ctx context.Context, domain string) (string, error) {
	domain = model.NormalizeDomain(domain)
	if domain == "" {
		return "", &model.ValidationError{Field: "domain", Reason: "must not be empty"}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeCNAME)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", &model.UpstreamError{Service: "dns", Op: "lookup " + domain, Transient: true, Err: err}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", nil
	default:
		return "", &model.UpstreamError{
			Service:   "dns",
			Op:        "lookup " + domain,
			Transient: resp.Rcode == dns.RcodeServerFailure,
			Err:       fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode]),
		}
	}

	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok {
			return strings.TrimSuffix(cname.Target, "."), nil
		}
	}
	return "", nil
}
