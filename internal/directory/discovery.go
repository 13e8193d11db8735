package directory

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/IMJLA/go-adsi/pkg/identity"
)

// Endpoint is one directory server candidate.
type Endpoint struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", or "fallback"
}

// URL renders the endpoint as an ldap:// or ldaps:// URL.
func (e Endpoint) URL() string {
	scheme := "ldap"
	if e.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, e.Host, e.Port)
}

// Validate checks an endpoint is connectable.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("endpoint host cannot be empty")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", e.Port)
	}
	return nil
}

// Discovery locates directory servers for a domain through DNS SRV records.
type Discovery struct {
	resolver *net.Resolver
	log      identity.Logger
}

// NewDiscovery creates a Discovery using the default DNS resolver.
func NewDiscovery(log identity.Logger) *Discovery {
	return &Discovery{
		resolver: net.DefaultResolver,
		log:      log,
	}
}

// DiscoverServers finds directory endpoints for a domain. LDAPS records are
// preferred: _ldaps._tcp, then _ldap._tcp, then the global catalog. When no
// SRV record answers, the domain name itself with standard ports is the
// fallback.
func (d *Discovery) DiscoverServers(ctx context.Context, domain string) ([]Endpoint, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	services := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
		{"_gc._tcp." + domain, false},
	}

	var endpoints []Endpoint
	for _, service := range services {
		found, err := d.lookupSRV(ctx, service.name, service.useTLS)
		if err != nil {
			d.log.Debug("SRV lookup produced no servers", map[string]any{
				"service": service.name,
				"error":   err.Error(),
			})
			continue
		}
		endpoints = append(endpoints, found...)

		// LDAPS answers end the search.
		if service.useTLS && len(found) > 0 {
			break
		}
	}

	if len(endpoints) == 0 {
		d.log.Debug("No SRV records found, using fallback endpoints", map[string]any{
			"domain": domain,
		})
		return fallbackEndpoints(domain), nil
	}

	sortByPriority(endpoints)

	d.log.Debug("Server discovery completed", map[string]any{
		"domain":  domain,
		"servers": len(endpoints),
	})
	return endpoints, nil
}

func (d *Discovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]Endpoint, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	endpoints := make([]Endpoint, 0, len(records))
	for _, record := range records {
		endpoints = append(endpoints, Endpoint{
			Host:     strings.TrimSuffix(record.Target, "."),
			Port:     int(record.Port),
			UseTLS:   useTLS,
			Priority: int(record.Priority),
			Weight:   int(record.Weight),
			Source:   "srv",
		})
	}
	return endpoints, nil
}

func fallbackEndpoints(domain string) []Endpoint {
	return []Endpoint{
		{Host: domain, Port: 636, UseTLS: true, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortByPriority orders endpoints per RFC 2782: ascending priority, then
// descending weight within a priority.
func sortByPriority(endpoints []Endpoint) {
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Priority != endpoints[j].Priority {
			return endpoints[i].Priority < endpoints[j].Priority
		}
		return endpoints[i].Weight > endpoints[j].Weight
	})
}

// ParseURL parses an ldap:// or ldaps:// URL into an endpoint. Explicitly
// configured URLs take the highest priority.
func ParseURL(url string) (Endpoint, error) {
	if url == "" {
		return Endpoint{}, fmt.Errorf("URL cannot be empty")
	}

	endpoint := Endpoint{Weight: 100, Source: "config"}

	switch {
	case strings.HasPrefix(url, "ldaps://"):
		endpoint.UseTLS = true
		url = strings.TrimPrefix(url, "ldaps://")
	case strings.HasPrefix(url, "ldap://"):
		url = strings.TrimPrefix(url, "ldap://")
	default:
		return Endpoint{}, fmt.Errorf("unsupported scheme, must be ldap:// or ldaps://")
	}

	// Anything after the first slash is a path, not part of the host.
	if slash := strings.Index(url, "/"); slash >= 0 {
		url = url[:slash]
	}

	if host, portStr, found := strings.Cut(url, ":"); found {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid port number: %s", portStr)
		}
		endpoint.Host = host
		endpoint.Port = port
	} else {
		endpoint.Host = url
		if endpoint.UseTLS {
			endpoint.Port = 636
		} else {
			endpoint.Port = 389
		}
	}

	return endpoint, endpoint.Validate()
}
