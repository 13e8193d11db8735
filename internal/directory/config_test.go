package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 10, config.MaxConnections)
	assert.Equal(t, 5*time.Minute, config.MaxIdleTime)
	assert.Equal(t, 30*time.Second, config.HealthCheckInterval)
	assert.Equal(t, uint32(1000), config.PageSize)
	assert.True(t, config.UseTLS)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		config, err := NewConfig()
		require.NoError(t, err)
		config.Domain = "example.com"
		return config
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid domain config",
			mutate: func(*Config) {},
		},
		{
			name: "valid URL config",
			mutate: func(c *Config) {
				c.Domain = ""
				c.URLs = []string{"ldaps://dc1.example.com"}
			},
		},
		{
			name: "no domain or URLs",
			mutate: func(c *Config) {
				c.Domain = ""
			},
			wantErr: "either Domain or URLs",
		},
		{
			name: "zero max connections",
			mutate: func(c *Config) {
				c.MaxConnections = 0
			},
			wantErr: "MaxConnections",
		},
		{
			name: "zero timeout",
			mutate: func(c *Config) {
				c.Timeout = 0
			},
			wantErr: "Timeout",
		},
		{
			name: "password without username",
			mutate: func(c *Config) {
				c.Password = "secret"
			},
			wantErr: "Username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigUsesKerberos(t *testing.T) {
	config := &Config{}
	assert.False(t, config.UsesKerberos())

	assert.True(t, (&Config{KerberosRealm: "EXAMPLE.COM"}).UsesKerberos())
	assert.True(t, (&Config{KerberosKeytab: "/etc/krb5.keytab"}).UsesKerberos())
	assert.True(t, (&Config{KerberosCCache: "/tmp/krb5cc_0"}).UsesKerberos())
}

func TestConfigTLSConfig(t *testing.T) {
	config := &Config{SkipTLSVerify: true}

	tlsConfig, err := config.TLSConfig("dc1.example.com")
	require.NoError(t, err)
	assert.Equal(t, "dc1.example.com", tlsConfig.ServerName)
	assert.True(t, tlsConfig.InsecureSkipVerify)
	assert.Nil(t, tlsConfig.RootCAs)

	t.Run("missing CA file", func(t *testing.T) {
		config := &Config{TLSCACertFile: "/nonexistent/ca.pem"}
		_, err := config.TLSConfig("dc1.example.com")
		assert.Error(t, err)
	})
}
