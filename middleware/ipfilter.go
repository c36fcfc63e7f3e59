package middleware

import (
	"fmt"
	"net/netip"
)

// IPFilterConfig lists blocked and allowed addresses. Entries may be bare
// addresses or CIDR prefixes. Blacklist entries reject unconditionally; a
// non-empty whitelist admits only listed addresses.
type IPFilterConfig struct {
	Whitelist []string
	Blacklist []string
}

type ipFilter struct {
	whitelist []netip.Prefix
	blacklist []netip.Prefix
}

func newIPFilter(cfg IPFilterConfig) (*ipFilter, error) {
	whitelist, err := parsePrefixes(cfg.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("ip whitelist: %w", err)
	}
	blacklist, err := parsePrefixes(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("ip blacklist: %w", err)
	}
	return &ipFilter{whitelist: whitelist, blacklist: blacklist}, nil
}

// allowed reports whether ip passes the filter. Unparseable addresses are
// rejected whenever any filtering is configured.
func (f *ipFilter) allowed(ip string) bool {
	if len(f.blacklist) == 0 && len(f.whitelist) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, p := range f.blacklist {
		if p.Contains(addr) {
			return false
		}
	}
	if len(f.whitelist) == 0 {
		return true
	}
	for _, p := range f.whitelist {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix)
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q", entry)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
