package directory

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind authenticates a connection with GSSAPI.
func kerberosBind(conn *ldap.Conn, config *Config, endpoint Endpoint) error {
	realm, principal, err := kerberosIdentity(config)
	if err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	client, err := newGSSAPIClient(config, realm, principal)
	if err != nil {
		return fmt.Errorf("creating GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn := servicePrincipal(endpoint)
	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// kerberosIdentity derives the realm and principal, splitting a UPN-style
// username when no explicit realm is set.
func kerberosIdentity(config *Config) (realm, principal string, err error) {
	realm = config.KerberosRealm
	principal = config.Username

	if realm == "" {
		if name, upnRealm, found := strings.Cut(principal, "@"); found {
			principal = name
			realm = upnRealm
		}
	}

	if realm == "" {
		return "", "", fmt.Errorf("kerberos realm is required")
	}
	if principal == "" {
		return "", "", fmt.Errorf("principal is required for Kerberos authentication")
	}
	return realm, principal, nil
}

// newGSSAPIClient builds the GSSAPI client from the best available
// credential source: explicit ccache, default ccache, keytab, then password.
func newGSSAPIClient(config *Config, realm, principal string) (ldap.GSSAPIClient, error) {
	krb5conf := config.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if !fileReadable(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	if config.KerberosCCache != "" && fileReadable(config.KerberosCCache) {
		return gssapi.NewClientFromCCache(config.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if ccache := defaultCCachePath(); fileReadable(ccache) {
		return gssapi.NewClientFromCCache(ccache, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if config.KerberosKeytab != "" && fileReadable(config.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(principal, realm, config.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if config.Password != "" {
		return gssapi.NewClientWithPassword(principal, realm, config.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials for Kerberos authentication: provide a ccache, keytab, or password")
}

// servicePrincipal builds the ldap/<host> SPN for an endpoint. Ports never
// appear in an SPN.
func servicePrincipal(endpoint Endpoint) string {
	host := endpoint.Host
	if colon := strings.Index(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	return "ldap/" + host
}

// defaultCCachePath resolves the conventional credential cache location.
func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func fileReadable(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
