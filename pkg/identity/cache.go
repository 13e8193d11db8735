package identity

import (
	"github.com/puzpuzpuz/xsync"
)

// Cache is the multi-tier resolution cache shared across resolution calls.
// Four namespaces coexist: accounts keyed by server\sid, accounts keyed by
// server\caption, domain descriptors keyed by NetBIOS name, and domain
// descriptors keyed by DNS name or domain SID prefix.
//
// The cache owns all synchronization. Entries are written once per key but a
// later resolution discovering the same identity through a different path
// may overwrite; last writer wins. There is no eviction: size is bounded by
// the number of distinct identities encountered in the session.
type Cache struct {
	accountsBySid     *xsync.MapOf[string, Account]
	accountsByCaption *xsync.MapOf[string, Account]
	domainsByNetbios  *xsync.MapOf[string, DomainDescriptor]
	domainsByDns      *xsync.MapOf[string, DomainDescriptor]

	hits   *xsync.Counter
	misses *xsync.Counter
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// NewCache creates an empty resolution cache.
func NewCache() *Cache {
	return &Cache{
		accountsBySid:     xsync.NewMapOf[Account](),
		accountsByCaption: xsync.NewMapOf[Account](),
		domainsByNetbios:  xsync.NewMapOf[DomainDescriptor](),
		domainsByDns:      xsync.NewMapOf[DomainDescriptor](),
		hits:              &xsync.Counter{},
		misses:            &xsync.Counter{},
	}
}

// AccountKey composes the cache key for the account namespaces. Keys are
// scoped by server so the same SID seen through different servers resolves
// independently.
func AccountKey(server, sidOrCaption string) string {
	return server + `\` + sidOrCaption
}

// TryGetAccountBySid looks up an account by its server\sid key.
func (c *Cache) TryGetAccountBySid(key string) (Account, bool) {
	account, found := c.accountsBySid.Load(key)
	c.count(found)
	return account, found
}

// SetAccountBySid stores an account under its server\sid key.
func (c *Cache) SetAccountBySid(key string, account Account) {
	c.accountsBySid.Store(key, account)
}

// TryGetAccountByCaption looks up an account by its server\caption key.
func (c *Cache) TryGetAccountByCaption(key string) (Account, bool) {
	account, found := c.accountsByCaption.Load(key)
	c.count(found)
	return account, found
}

// SetAccountByCaption stores an account under its server\caption key.
func (c *Cache) SetAccountByCaption(key string, account Account) {
	c.accountsByCaption.Store(key, account)
}

// TryGetDomainByNetbios looks up a domain descriptor by NetBIOS name.
func (c *Cache) TryGetDomainByNetbios(netbiosName string) (DomainDescriptor, bool) {
	descriptor, found := c.domainsByNetbios.Load(netbiosName)
	c.count(found)
	return descriptor, found
}

// TryGetDomainByDns looks up a domain descriptor by DNS name or domain SID
// prefix.
func (c *Cache) TryGetDomainByDns(identifier string) (DomainDescriptor, bool) {
	descriptor, found := c.domainsByDns.Load(identifier)
	c.count(found)
	return descriptor, found
}

// SetDomain stores a descriptor under every key it carries so any of its
// names can be used to recover the others.
func (c *Cache) SetDomain(descriptor DomainDescriptor) {
	if descriptor.NetbiosName != "" {
		c.domainsByNetbios.Store(descriptor.NetbiosName, descriptor)
	}
	if descriptor.DnsName != "" {
		c.domainsByDns.Store(descriptor.DnsName, descriptor)
	}
	if descriptor.SidPrefix != "" {
		c.domainsByDns.Store(descriptor.SidPrefix, descriptor)
	}
}

// Stats returns the hit/miss counters accumulated so far.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Value(),
		Misses: c.misses.Value(),
	}
}

func (c *Cache) count(found bool) {
	if found {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
}
