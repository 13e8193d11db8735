// Package commands implements the adsi CLI.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IMJLA/go-adsi/internal/directory"
	"github.com/IMJLA/go-adsi/pkg/identity"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "adsi",
	Short: "Resolve Windows identities against Active Directory",
	Long: `adsi resolves identity references (SIDs, DOMAIN\name captions, account
names) to canonical identity records, and expands group memberships.

Directory connection settings come from flags or from ADSI_* environment
variables (ADSI_DOMAIN, ADSI_USERNAME, ADSI_PASSWORD, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("domain", "", "directory domain to discover servers for")
	flags.StringSlice("url", nil, "explicit directory URLs (ldap:// or ldaps://)")
	flags.String("base-dn", "", "search base DN (default: from root DSE)")
	flags.String("username", "", "bind username")
	flags.String("password", "", "bind password")
	flags.String("realm", "", "Kerberos realm")
	flags.String("keytab", "", "Kerberos keytab file")
	flags.String("ccache", "", "Kerberos credential cache file")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	flags.Duration("timeout", 30*time.Second, "directory operation timeout")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("output", "text", "output format (text, json)")

	viper.SetEnvPrefix("ADSI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging() {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newLogger(subsystem string) identity.Logger {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	return identity.NewZeroLogger(log, subsystem)
}

func directoryConfig() (*directory.Config, error) {
	config, err := directory.NewConfig()
	if err != nil {
		return nil, err
	}

	config.Domain = viper.GetString("domain")
	config.URLs = viper.GetStringSlice("url")
	config.BaseDN = viper.GetString("base-dn")
	config.Username = viper.GetString("username")
	config.Password = viper.GetString("password")
	config.KerberosRealm = viper.GetString("realm")
	config.KerberosKeytab = viper.GetString("keytab")
	config.KerberosCCache = viper.GetString("ccache")
	config.SkipTLSVerify = viper.GetBool("insecure")
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		config.Timeout = timeout
	}
	return config, nil
}

// session bundles the wired resolver stack for one command invocation.
type session struct {
	client   *directory.Client
	resolver *identity.Resolver
	expander *identity.Expander
	cache    *identity.Cache
}

func newSession(ctx context.Context) (*session, error) {
	config, err := directoryConfig()
	if err != nil {
		return nil, err
	}

	client, err := directory.NewClient(ctx, config, newLogger("directory"))
	if err != nil {
		return nil, err
	}

	connector := directory.NewConnector(client, newLogger("directory"))
	cache := identity.NewCache()
	resolver := identity.NewResolver(cache, identity.Collaborators{
		Translator: connector,
		Searcher:   connector,
		Domains:    connector,
		Groups:     connector,
		Services:   connector,
	}, identity.WithLogger(newLogger("identity")))

	return &session{
		client:   client,
		resolver: resolver,
		expander: identity.NewExpander(resolver),
		cache:    cache,
	}, nil
}

func (s *session) Close() {
	_ = s.client.Close()
}
