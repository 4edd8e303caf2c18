package directory

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// FallbackPrefix is what a malformed dash range degrades to. It matches every
// IPv4 address, so a router carrying it claims all otherwise-unclaimed IPs.
var FallbackPrefix = netip.MustParsePrefix("0.0.0.0/0")

// rangeFallbackBits is the prefix length applied to the start address when no
// /32../1 network holds both range endpoints.
const rangeFallbackBits = 24

// ErrEmptyRange is returned for a blank dhcp_range value.
var ErrEmptyRange = errors.New("dhcp range is empty")

// ParseNetwork turns a configured dhcp_range into a prefix. The value is either
// CIDR ("100.64.16.0/24"), a bare address (treated as a host prefix) or a dash
// range ("100.64.16.21-100.64.17.254"). The returned warning is non-empty when
// the result is wider than the configured value implies.
func ParseNetwork(raw string) (netip.Prefix, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Prefix{}, "", ErrEmptyRange
	}

	if strings.Contains(raw, "-") {
		p, covered, ok := RangeToPrefix(raw)
		if !ok {
			return p, fmt.Sprintf("dhcp range %q is malformed; falling back to %s which matches every IPv4 address", raw, p), nil
		}
		if !covered {
			return p, fmt.Sprintf("dhcp range %q spans no single network; using %s of its start address", raw, p), nil
		}
		if p.Bits() < rangeFallbackBits {
			return p, fmt.Sprintf("dhcp range %q widened to %s; configure CIDR for precise matching", raw, p), nil
		}
		return p, "", nil
	}

	if p, err := netip.ParsePrefix(raw); err == nil {
		masked := p.Masked()
		if masked != p {
			return masked, fmt.Sprintf("dhcp range %q has host bits set; using %s", raw, masked), nil
		}
		return masked, "", nil
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), "", nil
	}
	return netip.Prefix{}, "", fmt.Errorf("invalid dhcp range %q: want CIDR or start-end", raw)
}

// RangeToPrefix converts an IPv4 "start-end" range into the smallest prefix
// anchored at start that also contains end, widening from /32. When no /32../1
// network holds both endpoints the /24 of start is returned with covered set
// to false. ok is false when the range is malformed (unparsable, reversed or
// not IPv4), in which case FallbackPrefix is returned.
func RangeToPrefix(raw string) (p netip.Prefix, covered bool, ok bool) {
	r, err := netipx.ParseIPRange(strings.ReplaceAll(raw, " ", ""))
	if err != nil || !r.From().Is4() {
		return FallbackPrefix, false, false
	}
	start, end := r.From(), r.To()

	for bits := 32; bits >= 1; bits-- {
		p := netip.PrefixFrom(start, bits).Masked()
		if p.Contains(end) {
			return p, true, true
		}
	}
	return netip.PrefixFrom(start, rangeFallbackBits).Masked(), false, true
}
