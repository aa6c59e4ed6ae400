package lnurlpay

import (
	"fmt"
	"net"
)

// ErrHostNotAllowed is returned by ValidateHost when the request's Host
// header does not name a configured host.
var ErrHostNotAllowed = fmt.Errorf("host not in allowed set")

// ValidateHost checks an inbound Host header against the configured
// allow-set, stripping any port first. An empty allow-set is the dev
// default: any host passes, but a warning is logged.
func ValidateHost(hostHeader string, allowed map[string]struct{}) (string, error) {
	domain := hostHeader
	if host, _, err := net.SplitHostPort(hostHeader); err == nil {
		domain = host
	}

	if len(allowed) == 0 {
		log.Warnf("lnurlpay: host allow-set is empty, trusting unvalidated host %q", domain)
		return domain, nil
	}

	if _, ok := allowed[domain]; !ok {
		return "", ErrHostNotAllowed
	}
	return domain, nil
}
