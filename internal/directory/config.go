package directory

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
)

// Config holds the settings for one directory connection pool.
type Config struct {
	// Domain enables SRV discovery of directory servers when no explicit
	// URLs are given.
	Domain string
	// URLs are explicit ldap:// or ldaps:// endpoints; they override
	// discovery.
	URLs []string
	// BaseDN roots searches when the caller does not supply one.
	BaseDN string

	Timeout time.Duration `default:"30s"`

	// Simple bind credentials. Username may be a DN, a UPN, or
	// DOMAIN\name.
	Username string
	Password string

	// Kerberos settings for GSSAPI binds. Credential sources are tried in
	// ccache, keytab, password order.
	KerberosRealm  string
	KerberosConfig string
	KerberosKeytab string
	KerberosCCache string

	UseTLS        bool `default:"true"`
	SkipTLSVerify bool
	TLSCACertFile string

	MaxConnections      int           `default:"10"`
	MaxIdleTime         time.Duration `default:"5m"`
	HealthCheckInterval time.Duration `default:"30s"`

	// PageSize bounds each page of a paged search.
	PageSize uint32 `default:"1000"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() (*Config, error) {
	config := &Config{}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}
	return config, nil
}

// Validate checks the settings a pool cannot start without.
func (c *Config) Validate() error {
	if c.Domain == "" && len(c.URLs) == 0 {
		return errors.New("either Domain or URLs must be set")
	}
	if c.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("Timeout must be positive")
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("Password set without Username")
	}
	return nil
}

// UsesKerberos reports whether any Kerberos credential source is configured.
func (c *Config) UsesKerberos() bool {
	return c.KerberosRealm != "" || c.KerberosKeytab != "" || c.KerberosCCache != ""
}

// TLSConfig builds the TLS settings for outbound connections.
func (c *Config) TLSConfig(serverName string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         serverName,
		InsecureSkipVerify: c.SkipTLSVerify,
	}

	if c.TLSCACertFile != "" {
		pem, err := os.ReadFile(c.TLSCACertFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.TLSCACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
