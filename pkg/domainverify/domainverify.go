// Package domainverify probes domain ownership. A domain is proven either
// by serving the verification token over HTTPS at a well-known path or by
// publishing it in a DNS TXT record.
package domainverify

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ValidationType selects the probe.
const (
	TypeHTTP = "http"
	TypeDNS  = "dns"
)

// Probe is the port consumed by the command engine. Network failures report
// false, never an error: an unreachable domain is an unverified domain.
type Probe interface {
	VerifyHTTP(ctx context.Context, domain, token string) bool
	VerifyDNS(ctx context.Context, domain, token string) bool
}

// Prober implements Probe against the real network.
type Prober struct {
	client   *http.Client
	resolver *net.Resolver
}

// New creates a prober with a bounded HTTP client.
func New() *Prober {
	return &Prober{
		client:   &http.Client{Timeout: 10 * time.Second},
		resolver: net.DefaultResolver,
	}
}

// VerifyHTTP fetches https://{domain}/.well-known/auriga-challenge and
// compares the body with the token.
func (p *Prober) VerifyHTTP(ctx context.Context, domain, token string) bool {
	url := fmt.Sprintf("https://%s/.well-known/auriga-challenge", domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(body)) == token
}

// VerifyDNS looks up TXT records of _auriga-challenge.{domain} and matches
// the token.
func (p *Prober) VerifyDNS(ctx context.Context, domain, token string) bool {
	records, err := p.resolver.LookupTXT(ctx, "_auriga-challenge."+domain)
	if err != nil {
		return false
	}
	for _, record := range records {
		if strings.TrimSpace(record) == token {
			return true
		}
	}
	return false
}

// Static is a test probe with a fixed answer.
type Static struct {
	OK bool
}

func (s Static) VerifyHTTP(context.Context, string, string) bool { return s.OK }
func (s Static) VerifyDNS(context.Context, string, string) bool  { return s.OK }
