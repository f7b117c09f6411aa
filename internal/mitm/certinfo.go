package mitm

import "time"

// CertificateInfo carries the subject attributes and validity window used to
// build an X.509 certificate. Construct it before generation; it is treated
// as immutable afterwards.
type CertificateInfo struct {
	CommonName         string
	Organization       string
	OrganizationalUnit string
	NotBefore          time.Time
	NotAfter           time.Time
}
