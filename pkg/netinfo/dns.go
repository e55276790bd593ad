package netinfo

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// MailRecords summarizes the mail-relevant DNS posture of a sender domain.
type MailRecords struct {
	Domain  string
	MX      []string // exchange hosts, preference order
	HasSPF  bool     // a TXT record starting with v=spf1 exists
	Queried bool     // false when every query path failed
}

// RecordLookup queries MX and TXT records for sender domains. A nameserver is
// read from resolv.conf once at construction; the stdlib resolver is the
// fallback when none is configured.
type RecordLookup struct {
	client     *dns.Client
	nameserver string
}

// NewRecordLookup builds a DNS record resolver with the given query timeout.
func NewRecordLookup(timeout time.Duration) *RecordLookup {
	r := &RecordLookup{
		client: &dns.Client{
			Net:          "udp",
			Timeout:      timeout,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		r.nameserver = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return r
}

// Lookup fetches MX and SPF posture for a domain. Partial answers are fine:
// a domain with no MX records is a meaningful (suspicious) result, not an
// error. Queried is false only when resolution itself was impossible.
func (r *RecordLookup) Lookup(ctx context.Context, domain string) MailRecords {
	domain = strings.ToLower(strings.TrimSpace(domain))
	rec := MailRecords{Domain: domain}
	if domain == "" {
		return rec
	}

	if r.nameserver == "" {
		return r.lookupSystem(ctx, rec)
	}

	mxResp, ok := r.exchange(ctx, domain, dns.TypeMX)
	if ok {
		rec.Queried = true
		for _, ans := range mxResp.Answer {
			if mx, isMX := ans.(*dns.MX); isMX {
				rec.MX = append(rec.MX, strings.TrimSuffix(mx.Mx, "."))
			}
		}
	}

	txtResp, ok := r.exchange(ctx, domain, dns.TypeTXT)
	if ok {
		rec.Queried = true
		for _, ans := range txtResp.Answer {
			if txt, isTXT := ans.(*dns.TXT); isTXT {
				joined := strings.Join(txt.Txt, "")
				if strings.HasPrefix(joined, "v=spf1") {
					rec.HasSPF = true
				}
			}
		}
	}

	if !rec.Queried {
		return r.lookupSystem(ctx, rec)
	}
	return rec
}

func (r *RecordLookup) exchange(ctx context.Context, domain string, qtype uint16) (*dns.Msg, bool) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	resp, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
	if err != nil || resp == nil {
		return nil, false
	}
	return resp, true
}

func (r *RecordLookup) lookupSystem(ctx context.Context, rec MailRecords) MailRecords {
	mxs, mxErr := net.DefaultResolver.LookupMX(ctx, rec.Domain)
	if mxErr == nil {
		rec.Queried = true
		for _, mx := range mxs {
			rec.MX = append(rec.MX, strings.TrimSuffix(mx.Host, "."))
		}
	}
	txts, txtErr := net.DefaultResolver.LookupTXT(ctx, rec.Domain)
	if txtErr == nil {
		rec.Queried = true
		for _, t := range txts {
			if strings.HasPrefix(t, "v=spf1") {
				rec.HasSPF = true
			}
		}
	}
	return rec
}
