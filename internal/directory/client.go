package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/IMJLA/go-adsi/pkg/identity"
)

// SearchScope selects the depth of a directory search.
type SearchScope int

const (
	ScopeBase SearchScope = iota
	ScopeOneLevel
	ScopeSubtree
)

func (s SearchScope) ldapScope() int {
	switch s {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// SearchRequest describes a directory search.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
}

// SearchResult carries the entries a search produced. HasMore is set when
// the server indicated results beyond the requested size limit.
type SearchResult struct {
	Entries []*ldap.Entry
	HasMore bool
}

// RootDSE holds the server self-description attributes a resolver needs
// to identify the domain it is talking to.
type RootDSE struct {
	DefaultNamingContext       string
	RootDomainNamingContext    string
	ConfigurationNamingContext string
	DNSHostName                string
	ServerName                 string
}

// Client is a read-only directory client backed by a connection pool.
// Every operation checks out a connection, runs once, and returns it.
// Failures are categorized and reported to the caller without retry.
type Client struct {
	pool   *Pool
	config *Config
	log    identity.Logger
}

// NewClient builds a client and its pool from config.
func NewClient(ctx context.Context, config *Config, log identity.Logger) (*Client, error) {
	if config == nil {
		var err error
		if config, err = NewConfig(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = identity.NopLogger{}
	}

	pool, err := NewPool(ctx, config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &Client{pool: pool, config: config, log: log}, nil
}

// Close shuts down the underlying pool.
func (c *Client) Close() error {
	return c.pool.Close()
}

// Stats exposes the pool counters.
func (c *Client) Stats() PoolStats {
	return c.pool.Stats()
}

// Ping checks out a connection and issues a root DSE search to verify
// the server is reachable and the bind is still valid.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return WrapError("ping", err)
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext"},
		nil,
	)
	if _, err := conn.Conn().Search(req); err != nil {
		return WrapError("ping", err)
	}
	return nil
}

// Search runs a single unpaged search.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, newOperationError("search", ErrorCategoryValidation, "search request cannot be nil")
	}

	start := time.Now()
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, WrapError("search", err)
	}
	defer conn.Close()

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		req.Scope.ldapScope(),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	result, err := conn.Conn().Search(ldapReq)
	if err != nil {
		c.log.Debug("search failed", map[string]any{
			"base_dn": req.BaseDN,
			"filter":  req.Filter,
			"error":   err.Error(),
		})
		return nil, WrapError("search", err)
	}

	c.log.Trace("search completed", map[string]any{
		"base_dn":     req.BaseDN,
		"filter":      req.Filter,
		"entries":     len(result.Entries),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &SearchResult{
		Entries: result.Entries,
		HasMore: req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit,
	}, nil
}

// SearchWithPaging runs a search with the simple paged results control,
// accumulating every page. The page size comes from config. A failure on
// any page fails the whole search.
func (c *Client) SearchWithPaging(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, newOperationError("paged_search", ErrorCategoryValidation, "search request cannot be nil")
	}

	start := time.Now()
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, WrapError("paged_search", err)
	}
	defer conn.Close()

	pageSize := c.config.PageSize
	if pageSize == 0 {
		pageSize = 1000
	}
	paging := ldap.NewControlPaging(pageSize)

	var entries []*ldap.Entry
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return &SearchResult{Entries: entries, HasMore: true}, err
		}
		pages++

		ldapReq := ldap.NewSearchRequest(
			req.BaseDN,
			req.Scope.ldapScope(),
			ldap.NeverDerefAliases,
			0,
			int(req.TimeLimit.Seconds()),
			false,
			req.Filter,
			req.Attributes,
			[]ldap.Control{paging},
		)

		result, err := conn.Conn().Search(ldapReq)
		if err != nil {
			c.log.Debug("paged search failed", map[string]any{
				"base_dn": req.BaseDN,
				"filter":  req.Filter,
				"page":    pages,
				"error":   err.Error(),
			})
			return nil, WrapError("paged_search", err)
		}
		entries = append(entries, result.Entries...)

		control := ldap.FindControl(result.Controls, ldap.ControlTypePaging)
		response, ok := control.(*ldap.ControlPaging)
		if !ok || len(response.Cookie) == 0 {
			break
		}
		paging.SetCookie(response.Cookie)
	}

	c.log.Trace("paged search completed", map[string]any{
		"base_dn":     req.BaseDN,
		"filter":      req.Filter,
		"pages":       pages,
		"entries":     len(entries),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &SearchResult{Entries: entries}, nil
}

// Lookup reads a single entry by DN with a base-scoped search.
func (c *Client) Lookup(ctx context.Context, dn string, attributes []string) (*ldap.Entry, error) {
	if dn == "" {
		return nil, newOperationError("lookup", ErrorCategoryValidation, "DN cannot be empty")
	}

	result, err := c.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBase,
		Filter:     "(objectClass=*)",
		Attributes: attributes,
		SizeLimit:  1,
		TimeLimit:  c.config.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, newOperationError("lookup", ErrorCategoryNotFound, fmt.Sprintf("entry %s not found", dn))
	}
	return result.Entries[0], nil
}

// GetRootDSE reads the server self-description entry.
func (c *Client) GetRootDSE(ctx context.Context) (*RootDSE, error) {
	result, err := c.Search(ctx, &SearchRequest{
		BaseDN: "",
		Scope:  ScopeBase,
		Filter: "(objectClass=*)",
		Attributes: []string{
			"defaultNamingContext",
			"rootDomainNamingContext",
			"configurationNamingContext",
			"dnsHostName",
			"serverName",
		},
		SizeLimit: 1,
		TimeLimit: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, newOperationError("root_dse", ErrorCategoryServer, "no root DSE returned")
	}

	entry := result.Entries[0]
	return &RootDSE{
		DefaultNamingContext:       entry.GetAttributeValue("defaultNamingContext"),
		RootDomainNamingContext:    entry.GetAttributeValue("rootDomainNamingContext"),
		ConfigurationNamingContext: entry.GetAttributeValue("configurationNamingContext"),
		DNSHostName:                entry.GetAttributeValue("dnsHostName"),
		ServerName:                 entry.GetAttributeValue("serverName"),
	}, nil
}

// GetBaseDN returns the server's default naming context.
func (c *Client) GetBaseDN(ctx context.Context) (string, error) {
	if c.config.BaseDN != "" {
		return c.config.BaseDN, nil
	}

	dse, err := c.GetRootDSE(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get base DN: %w", err)
	}
	if dse.DefaultNamingContext == "" {
		return "", newOperationError("root_dse", ErrorCategoryServer, "no defaultNamingContext in root DSE")
	}
	return dse.DefaultNamingContext, nil
}

// WhoAmI runs the Who Am I? extended operation and reports the raw
// authorization identity the server associates with the bind.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return "", WrapError("whoami", err)
	}
	defer conn.Close()

	result, err := conn.Conn().WhoAmI(nil)
	if err != nil {
		return "", WrapError("whoami", err)
	}
	if result == nil {
		return "", newOperationError("whoami", ErrorCategoryServer, "empty whoami response")
	}
	return result.AuthzID, nil
}
