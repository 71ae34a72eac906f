package httpapp

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// accessList is an ordered allow/deny list of subnets, in the
// "+subnet,-subnet" notation. Rules are evaluated in order and the last
// match wins; with a non-empty list the default is to deny.
type accessList struct {
	rules []aclRule
}

type aclRule struct {
	allow  bool
	subnet *net.IPNet
}

func parseACL(spec string) (*accessList, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var rules []aclRule
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		var allow bool
		switch entry[0] {
		case '+':
			allow = true
		case '-':
			allow = false
		default:
			return nil, fmt.Errorf("acl entry %q must start with + or -", entry)
		}

		cidr := entry[1:]
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("acl entry %q: %w", entry, err)
		}
		rules = append(rules, aclRule{allow: allow, subnet: subnet})
	}

	return &accessList{rules: rules}, nil
}

func (a *accessList) allowed(ip net.IP) bool {
	verdict := false
	for _, rule := range a.rules {
		if rule.subnet.Contains(ip) {
			verdict = rule.allow
		}
	}
	return verdict
}

func (a *accessList) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := net.ParseIP(peerHost(r.RemoteAddr))
		if ip == nil || !a.allowed(ip) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
