package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKerberosIdentity(t *testing.T) {
	tests := []struct {
		name          string
		config        *Config
		wantRealm     string
		wantPrincipal string
		wantErr       bool
	}{
		{
			name:          "explicit realm and principal",
			config:        &Config{KerberosRealm: "EXAMPLE.COM", Username: "svc-reader"},
			wantRealm:     "EXAMPLE.COM",
			wantPrincipal: "svc-reader",
		},
		{
			name:          "realm derived from UPN",
			config:        &Config{Username: "svc-reader@EXAMPLE.COM"},
			wantRealm:     "EXAMPLE.COM",
			wantPrincipal: "svc-reader",
		},
		{
			name:          "explicit realm wins over UPN suffix",
			config:        &Config{KerberosRealm: "CORP.EXAMPLE.COM", Username: "svc-reader@EXAMPLE.COM"},
			wantRealm:     "CORP.EXAMPLE.COM",
			wantPrincipal: "svc-reader@EXAMPLE.COM",
		},
		{
			name:    "missing realm",
			config:  &Config{Username: "svc-reader"},
			wantErr: true,
		},
		{
			name:    "missing principal",
			config:  &Config{KerberosRealm: "EXAMPLE.COM"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			realm, principal, err := kerberosIdentity(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRealm, realm)
			assert.Equal(t, tt.wantPrincipal, principal)
		})
	}
}

func TestServicePrincipal(t *testing.T) {
	assert.Equal(t, "ldap/dc1.example.com", servicePrincipal(Endpoint{Host: "dc1.example.com", Port: 636}))
	assert.Equal(t, "ldap/dc1.example.com", servicePrincipal(Endpoint{Host: "dc1.example.com:636"}))
}

func TestDefaultCCachePath(t *testing.T) {
	t.Run("honors KRB5CCNAME", func(t *testing.T) {
		t.Setenv("KRB5CCNAME", "FILE:/tmp/krb5cc_test")
		assert.Equal(t, "/tmp/krb5cc_test", defaultCCachePath())
	})

	t.Run("falls back to per-uid cache", func(t *testing.T) {
		t.Setenv("KRB5CCNAME", "")
		assert.Contains(t, defaultCCachePath(), "/tmp/krb5cc_")
	})
}

func TestNewGSSAPIClientMissingConf(t *testing.T) {
	config := &Config{KerberosConfig: "/nonexistent/krb5.conf"}
	_, err := newGSSAPIClient(config, "EXAMPLE.COM", "svc-reader")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}
