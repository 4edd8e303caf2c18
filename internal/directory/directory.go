// Package directory maps subscriber IPs onto the edge router that owns them.
package directory

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
)

// UnknownSite is reported when no router claims an address.
const UnknownSite = "Unknown"

// Source is one site entry from the router directory file.
type Source struct {
	Site      string `json:"-" yaml:"-"`
	APIURL    string `json:"api_url" yaml:"api_url"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	RouterIP  string `json:"router_ip" yaml:"router_ip"`
	DHCPRange string `json:"dhcp_range" yaml:"dhcp_range"`
}

// Router identifies a managed router and the networks it serves.
type Router struct {
	Site     string `validate:"required"`
	Name     string `validate:"required"`
	Endpoint string `validate:"required,http_url"`
	Username string
	Password string
	Networks []netip.Prefix
}

func (r *Router) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Site)
}

// Contains reports whether addr falls in one of the router's networks.
func (r *Router) Contains(addr netip.Addr) bool {
	for _, n := range r.Networks {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

// Directory resolves addresses in configuration order. It is immutable after
// construction and safe for concurrent use.
type Directory struct {
	routers  []Router
	warnings []string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New builds a directory from sources, preserving their order. Entries without
// an api_url are skipped. Configuration-quality problems (overly broad
// fallbacks, overlaps, routers with no networks) are logged as warnings and
// kept on the directory; structurally invalid routers are an error.
func New(sources []Source, log *zap.Logger) (*Directory, error) {
	log = logging.OrNop(log).Named("directory")
	d := &Directory{}
	warn := func(msg string, fields ...zap.Field) {
		d.warnings = append(d.warnings, msg)
		log.Warn(msg, fields...)
	}

	var errs []string
	for _, src := range sources {
		if strings.TrimSpace(src.APIURL) == "" {
			warn(fmt.Sprintf("site %q has no api_url; skipped", src.Site))
			continue
		}

		r := Router{
			Site:     src.Site,
			Name:     src.RouterIP,
			Endpoint: strings.TrimRight(src.APIURL, "/"),
			Username: src.Username,
			Password: src.Password,
		}
		if r.Name == "" {
			r.Name = src.Site
		}

		p, w, err := ParseNetwork(src.DHCPRange)
		switch {
		case err != nil:
			warn(fmt.Sprintf("site %q: %v; router will never match", src.Site, err))
		default:
			if w != "" {
				warn(fmt.Sprintf("site %q: %s", src.Site, w), zap.String("network", p.String()))
			}
			r.Networks = append(r.Networks, p)
		}

		if err := validate.Struct(r); err != nil {
			errs = append(errs, fmt.Sprintf("site %q: %v", src.Site, err))
			continue
		}
		d.routers = append(d.routers, r)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("router directory invalid:\n  %s", strings.Join(errs, "\n  "))
	}

	for i := range d.routers {
		for j := i + 1; j < len(d.routers); j++ {
			if a, b, ok := overlapping(&d.routers[i], &d.routers[j]); ok {
				warn(fmt.Sprintf("networks %s (%s) and %s (%s) overlap; %s wins",
					a, d.routers[i].Site, b, d.routers[j].Site, d.routers[i].Site))
			}
		}
	}

	log.Info("router directory loaded", zap.Int("routers", len(d.routers)), zap.Int("warnings", len(d.warnings)))
	return d, nil
}

func overlapping(a, b *Router) (netip.Prefix, netip.Prefix, bool) {
	for _, pa := range a.Networks {
		for _, pb := range b.Networks {
			if pa.Overlaps(pb) {
				return pa, pb, true
			}
		}
	}
	return netip.Prefix{}, netip.Prefix{}, false
}

// Resolve returns the first router, in configuration order, whose networks
// contain ip. An unparsable or unclaimed ip yields (UnknownSite, nil, false).
func (d *Directory) Resolve(ip string) (string, *Router, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return UnknownSite, nil, false
	}
	addr = addr.Unmap()
	for i := range d.routers {
		if d.routers[i].Contains(addr) {
			return d.routers[i].Site, &d.routers[i], true
		}
	}
	return UnknownSite, nil, false
}

// Routers returns a copy of the configured routers in resolution order.
func (d *Directory) Routers() []Router {
	out := make([]Router, len(d.routers))
	copy(out, d.routers)
	return out
}

// Warnings returns the configuration-quality warnings found while loading.
func (d *Directory) Warnings() []string {
	out := make([]string, len(d.warnings))
	copy(out, d.warnings)
	return out
}
