package dns

import (
	"net"

	"github.com/miekg/dns"
)

// LookupStatus classifies the outcome of a single live lookup attempt.
type LookupStatus int

const (
	// StatusSuccess means the lookup returned one or more records.
	StatusSuccess LookupStatus = iota
	// StatusNotFound means the host definitively has no records of the
	// requested type, or the hostname could not be parsed as a query.
	StatusNotFound
	// StatusTryAgain means a transient network or server failure occurred
	// and the same lookup may succeed if retried.
	StatusTryAgain
)

// Record is one raw answer from the lookup machinery. Name is whatever
// canonical form the server returned (usually carrying a trailing dot) and
// Addr holds the raw address bytes, 4 for IPv4 and 16 for IPv6.
type Record struct {
	Name string
	Addr []byte
}

// HostLookup issues a single typed lookup for a hostname. Implementations
// must be safe for concurrent use; the resolver calls them from arbitrary
// goroutines.
type HostLookup interface {
	LookupHost(host string, qtype RecordType) ([]Record, LookupStatus)
}

// systemLookup resolves against the nameservers in the system resolver
// configuration using github.com/miekg/dns.
type systemLookup struct {
	client *dns.Client
	config *dns.ClientConfig
}

const resolvConfPath = "/etc/resolv.conf"

func newSystemLookup() (*systemLookup, error) {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, err
	}
	return &systemLookup{
		client: new(dns.Client),
		config: cfg,
	}, nil
}

func (l *systemLookup) LookupHost(host string, qtype RecordType) ([]Record, LookupStatus) {
	// Hostnames that cannot form a query are a definitive miss, not a
	// transient failure.
	if _, ok := dns.IsDomainName(host); !ok {
		return nil, StatusNotFound
	}

	dnsType := dns.TypeA
	if qtype == TypeAAAA {
		dnsType = dns.TypeAAAA
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dnsType)
	msg.RecursionDesired = true

	for _, server := range l.config.Servers {
		resp, _, err := l.client.Exchange(msg, net.JoinHostPort(server, l.config.Port))
		if err != nil {
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			records := answersToRecords(resp.Answer)
			if len(records) == 0 {
				return nil, StatusNotFound
			}
			return records, StatusSuccess
		case dns.RcodeNameError:
			return nil, StatusNotFound
		default:
			// SERVFAIL and friends: try the next server, report a
			// transient failure if they all misbehave.
		}
	}
	return nil, StatusTryAgain
}

func answersToRecords(answers []dns.RR) []Record {
	var records []Record
	for _, rr := range answers {
		switch a := rr.(type) {
		case *dns.A:
			records = append(records, Record{Name: rr.Header().Name, Addr: a.A})
		case *dns.AAAA:
			records = append(records, Record{Name: rr.Header().Name, Addr: a.AAAA})
		}
	}
	return records
}
