package dnscheck_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pagesdns/internal/adapter/driven/dnscheck"
)

// startServer runs an in-process DNS server that answers CNAME queries from
// records and NXDOMAIN for everything else.
func startServer(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		msg := new(dns.Msg)
		msg.SetReply(req)

		q := req.Question[0]
		target, ok := records[q.Name]
		if !ok {
			msg.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(msg)
			return
		}
		msg.Answer = append(msg.Answer, &dns.CNAME{
			Hdr:    dns.RR_Header{Name: q.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
			Target: dns.Fqdn(target),
		})
		_ = w.WriteMsg(msg)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestLookupCNAME(t *testing.T) {
	addr := startServer(t, map[string]string{"docs.example.com.": "octo.github.io"})
	resolver := dnscheck.NewResolver(addr, 2*time.Second)

	target, err := resolver.LookupCNAME(context.Background(), "Docs.Example.com.")
	require.NoError(t, err)
	assert.Equal(t, "octo.github.io", target)
}

func TestLookupCNAME_NXDomain(t *testing.T) {
	addr := startServer(t, map[string]string{})
	resolver := dnscheck.NewResolver(addr, 2*time.Second)

	target, err := resolver.LookupCNAME(context.Background(), "missing.example.com")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestLookupCNAME_RejectsEmptyDomain(t *testing.T) {
	resolver := dnscheck.NewResolver("127.0.0.1:1", time.Second)

	_, err := resolver.LookupCNAME(context.Background(), "  ")
	require.Error(t, err)
}
