package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/IMJLA/go-adsi/pkg/sid"
)

// accountAttributes is the attribute set requested from directory lookups
// that feed account records.
var accountAttributes = []string{
	"objectSid",
	"sAMAccountName",
	"distinguishedName",
	"schemaClassName",
	"objectClass",
	"description",
}

// maxReentries bounds the recursion that follows a successful SID
// translation. Two SIDs translating into each other would otherwise recurse
// without bound.
const maxReentries = 1

// writeKind selects the cache namespace a pending write targets.
type writeKind int

const (
	writeAccountBySid writeKind = iota
	writeAccountByCaption
	writeDomain
)

// cacheWrite is one pending cache mutation produced by a resolution branch.
// Branches return their writes instead of touching the cache; the resolver
// applies them centrally after the branch succeeds.
type cacheWrite struct {
	kind    writeKind
	key     string
	account Account
	domain  DomainDescriptor
}

// accountWrites builds the pending writes that register an account under
// both account namespaces.
func accountWrites(server ServerContext, account Account) []cacheWrite {
	writes := make([]cacheWrite, 0, 2)
	if account.Sid != "" {
		writes = append(writes, cacheWrite{
			kind:    writeAccountBySid,
			key:     AccountKey(server.Server, account.Sid),
			account: account,
		})
	}
	if account.Caption != "" {
		writes = append(writes, cacheWrite{
			kind:    writeAccountByCaption,
			key:     AccountKey(server.Server, account.Caption),
			account: account,
		})
	}
	return writes
}

// degradedWrites pins an exhausted resolution under the same keys a real
// account would occupy. The next resolution of the reference hits the cache
// instead of repeating the fallback chain.
func degradedWrites(server ServerContext, reference string) []cacheWrite {
	account := Account{
		Caption:    reference,
		Unresolved: true,
	}
	if sid.IsSidString(reference) {
		account.Sid = reference
	}
	return accountWrites(server, account)
}

// Resolver is the identity resolution fallback engine. It is safe for
// concurrent use; all shared state lives in the injected Cache.
type Resolver struct {
	cache  *Cache
	collab Collaborators
	log    Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLogger injects a logger. The default discards all output.
func WithLogger(log Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a resolver over an explicit cache and collaborator
// set. Concurrent resolvers may share one cache; they then deduplicate
// each other's backend round-trips.
func NewResolver(cache *Cache, collab Collaborators, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:  cache,
		collab: collab,
		log:    NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveIdentity resolves a raw identity reference, either a SID string or
// a DOMAIN\name account reference, against the server context that produced
// it.
//
// Resolution degrades rather than fails: when every fallback exhausts, the
// returned Record carries the original reference in all representations with
// UnresolvedReference set, and the error is nil. ErrUnresolvableIdentity is
// returned only for references that cannot enter the chain at all.
func (r *Resolver) ResolveIdentity(ctx context.Context, reference string, server ServerContext) (*Record, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnresolvableIdentity)
	}

	var record *Record
	err := logOperation(r.log, "resolve_identity", map[string]any{
		"reference": reference,
		"server":    server.Server,
	}, func() error {
		var err error
		record, err = r.resolve(ctx, reference, server, 0)
		return err
	})
	return record, err
}

// resolve runs the fixed precedence chain. depth counts re-entries after a
// successful SID translation.
func (r *Resolver) resolve(ctx context.Context, reference string, server ServerContext, depth int) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Cache short-circuits everything else.
	if account, found := r.lookupCached(reference, server); found {
		r.log.Trace("Cache hit", map[string]any{"reference": reference})
		if account.Unresolved {
			return degradedRecord(reference), nil
		}
		return r.recordFromAccount(reference, account, server), nil
	}

	domain, name := SplitReference(reference)

	// 2. Well-known-authority dispatch.
	if known, found := sid.LookupWellKnownCaption(reference); found {
		account := wellKnownAccount(known)
		r.applyWrites(accountWrites(server, account))
		return r.recordFromAccount(reference, account, server), nil
	}
	if account, found := r.dispatchAuthority(ctx, domain, name, server); found {
		return r.recordFromAccount(reference, account, server), nil
	}

	// 3. SID-form resolution.
	if sid.IsSidString(name) {
		return r.resolveSidForm(ctx, name, server, depth)
	}

	// 4. Account-name resolution.
	if record, found := r.resolveAccountName(ctx, reference, domain, name, server); found {
		return record, nil
	}

	r.log.Debug("All fallbacks exhausted", map[string]any{"reference": reference})
	r.applyWrites(degradedWrites(server, reference))
	return degradedRecord(reference), nil
}

// lookupCached checks the account namespaces: server\sid, server\caption,
// and, when the reference carries a domain segment, server\name.
func (r *Resolver) lookupCached(reference string, server ServerContext) (Account, bool) {
	if sid.IsSidString(reference) {
		if account, found := r.cache.TryGetAccountBySid(AccountKey(server.Server, reference)); found {
			return account, true
		}
	}
	if account, found := r.cache.TryGetAccountByCaption(AccountKey(server.Server, reference)); found {
		return account, true
	}
	if domain, name := SplitReference(reference); domain != "" {
		if account, found := r.cache.TryGetAccountByCaption(AccountKey(server.Server, name)); found {
			return account, true
		}
	}
	return Account{}, false
}

// dispatchAuthority routes a special-authority reference to its handler. A
// handler error is logged and treated as "no result"; the caller falls
// through to the generic branches.
func (r *Resolver) dispatchAuthority(ctx context.Context, domain, name string, server ServerContext) (Account, bool) {
	class := classifyAuthority(domain)
	if class == authorityGeneric {
		return Account{}, false
	}

	var (
		account Account
		writes  []cacheWrite
		found   bool
		err     error
	)
	switch class {
	case authorityService:
		account, writes, found, err = r.resolveServiceAuthority(ctx, name, server)
	case authorityAppPackage:
		account, writes, found, err = r.resolveAppPackageAuthority(ctx, name, server)
	case authorityBuiltin:
		account, writes, found, err = r.resolveBuiltinAuthority(ctx, name, server)
	}
	if err != nil {
		r.log.Warn("Authority handler failed", map[string]any{
			"domain": domain,
			"name":   name,
			"error":  err.Error(),
		})
		return Account{}, false
	}
	if !found {
		return Account{}, false
	}

	r.applyWrites(writes)
	return account, true
}

// resolveSidForm resolves a reference that is itself a SID string.
func (r *Resolver) resolveSidForm(ctx context.Context, sidString string, server ServerContext, depth int) (*Record, error) {
	// Capability SIDs decode locally; there is nothing to ask a server.
	if strings.HasPrefix(sidString, "S-1-15-3-") {
		if info, err := sid.DecodeAppCapabilitySid(sidString); err == nil {
			account := Account{
				Sid:         sidString,
				Caption:     info.Name,
				Domain:      "APPLICATION PACKAGE AUTHORITY",
				Name:        info.Name,
				SchemaClass: info.SchemaClass,
				Description: info.Description,
			}
			r.applyWrites(accountWrites(server, account))
			return r.recordFromAccount(sidString, account, server), nil
		}
	}

	if known, found := sid.LookupWellKnownSid(sidString); found {
		account := wellKnownAccount(known)
		r.applyWrites(accountWrites(server, account))
		return r.recordFromAccount(sidString, account, server), nil
	}

	// Translation failure is routine for orphaned and foreign SIDs; it is
	// captured as "untranslatable", never propagated.
	translated := ""
	if r.collab.Translator != nil {
		name, found, err := r.collab.Translator.TranslateSidToName(ctx, sidString)
		if err != nil {
			r.log.Debug("SID translation unavailable", map[string]any{
				"sid":   sidString,
				"error": err.Error(),
			})
		} else if found {
			translated = name
		}
	}

	// The issuing domain is the SID truncated at its last separator.
	domainSid := sid.DomainPrefix(sidString)
	_, domainWrites, _ := r.resolveDomain(ctx, domainSid)
	r.applyWrites(domainWrites)

	if translated == "" {
		r.log.Debug("SID untranslatable", map[string]any{"sid": sidString})
		r.applyWrites(degradedWrites(server, sidString))
		return degradedRecord(sidString), nil
	}

	translatedDomain, translatedName := SplitReference(translated)
	account := Account{
		Sid:     sidString,
		Caption: translated,
		Domain:  translatedDomain,
		Name:    translatedName,
	}
	writes := accountWrites(server, account)

	// Re-enter the chain once with the translated caption to pick up any
	// richer record another path already produced.
	if depth < maxReentries {
		if record, err := r.resolve(ctx, translated, server, depth+1); err == nil && record.Resolved() {
			richer := *record
			richer.OriginalReference = sidString
			if !sid.IsSidString(richer.SidString) {
				richer.SidString = sidString
			}
			r.applyWrites(writes)
			return &richer, nil
		}
	}

	r.applyWrites(writes)
	return r.recordFromAccount(sidString, account, server), nil
}

// resolveAccountName resolves a DOMAIN\name or bare-name reference by
// deriving its SID, accepting the first success of: server-scoped
// translation, domain-scoped translation, a samaccountname search rooted at
// the domain's distinguished name, and a point lookup on the server.
// reference is the caller's raw input and flows through to the record
// untouched.
func (r *Resolver) resolveAccountName(ctx context.Context, reference, domain, name string, server ServerContext) (*Record, bool) {
	if domain == "" {
		domain = server.NetbiosName
	}

	var writes []cacheWrite
	descriptor, domainWrites, domainFound := r.resolveDomain(ctx, domain)
	writes = append(writes, domainWrites...)

	netbios := domain
	if domainFound && descriptor.NetbiosName != "" {
		netbios = descriptor.NetbiosName
	}

	sidString := ""
	schemaClass := ""
	description := ""

	if r.collab.Translator != nil {
		if server.NetbiosName != "" {
			if derived, found, err := r.collab.Translator.TranslateNameToSid(ctx, server.NetbiosName, name); err == nil && found {
				sidString = derived
			}
		}
		if sidString == "" && netbios != "" && !strings.EqualFold(netbios, server.NetbiosName) {
			if derived, found, err := r.collab.Translator.TranslateNameToSid(ctx, netbios, name); err == nil && found {
				sidString = derived
			}
		}
	}

	if sidString == "" && r.collab.Searcher != nil && domainFound && descriptor.Searchable() {
		filter := fmt.Sprintf("(samaccountname=%s)", ldap.EscapeFilter(name))
		entries, err := r.collab.Searcher.SearchDirectory(ctx, descriptor.DistinguishedName, filter, accountAttributes)
		if err != nil {
			r.log.Debug("Directory search unavailable", map[string]any{
				"domain": domain,
				"name":   name,
				"error":  err.Error(),
			})
		} else if len(entries) > 0 {
			sidString = entries[0].First("objectSid")
			schemaClass = entrySchemaClass(entries[0])
			description = entries[0].First("description")
		}
	}

	if sidString == "" && r.collab.Searcher != nil {
		path := "WinNT://" + server.Server + "/" + name
		entry, found, err := r.collab.Searcher.PointLookup(ctx, path, accountAttributes)
		if err != nil {
			r.log.Debug("Point lookup unavailable", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		} else if found {
			sidString = entry.First("objectSid")
			schemaClass = entrySchemaClass(entry)
			description = entry.First("description")
		}
	}

	if sidString == "" {
		return nil, false
	}

	account := Account{
		Sid:         sidString,
		Caption:     netbios + `\` + name,
		Domain:      netbios,
		Name:        name,
		SchemaClass: schemaClass,
		Description: description,
	}
	writes = append(writes, accountWrites(server, account)...)
	r.applyWrites(writes)

	return r.recordFromAccount(reference, account, server), true
}

// resolveDomain resolves a domain identifier (NetBIOS, DNS, or SID prefix)
// to its descriptor, consulting the cache before the collaborator. The
// descriptor write comes back pending rather than being applied here.
func (r *Resolver) resolveDomain(ctx context.Context, identifier string) (DomainDescriptor, []cacheWrite, bool) {
	if identifier == "" {
		return DomainDescriptor{}, nil, false
	}
	if descriptor, found := r.cache.TryGetDomainByNetbios(identifier); found {
		return descriptor, nil, true
	}
	if descriptor, found := r.cache.TryGetDomainByDns(identifier); found {
		return descriptor, nil, true
	}
	if r.collab.Domains == nil {
		return DomainDescriptor{}, nil, false
	}

	descriptor, found, err := r.collab.Domains.LookupDomainInfo(ctx, identifier)
	if err != nil {
		r.log.Debug("Domain lookup unavailable", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return DomainDescriptor{}, nil, false
	}
	if !found {
		return DomainDescriptor{}, nil, false
	}
	return descriptor, []cacheWrite{{kind: writeDomain, domain: descriptor}}, true
}

// recordFromAccount shapes an account into the resolver's output record.
// Only cached domain descriptors are consulted; a cache-hit resolution must
// not trigger collaborator calls.
func (r *Resolver) recordFromAccount(reference string, account Account, server ServerContext) *Record {
	fullyQualified := account.Caption
	if account.Domain != "" && account.Name != "" {
		descriptor, found := r.cache.TryGetDomainByNetbios(account.Domain)
		if !found {
			descriptor, found = r.cache.TryGetDomainByDns(account.Domain)
		}
		if found && descriptor.DnsName != "" {
			fullyQualified = descriptor.DnsName + `\` + account.Name
		}
	}

	return &Record{
		OriginalReference:  reference,
		SidString:          account.Sid,
		ShortName:          account.Caption,
		FullyQualifiedName: fullyQualified,
	}
}

// degradedRecord carries an unresolvable reference through as-is in every
// representation so bulk processing keeps going.
func degradedRecord(reference string) *Record {
	return &Record{
		OriginalReference:   reference,
		UnresolvedReference: reference,
		SidString:           reference,
		ShortName:           reference,
		FullyQualifiedName:  reference,
	}
}

func (r *Resolver) applyWrites(writes []cacheWrite) {
	for _, write := range writes {
		switch write.kind {
		case writeAccountBySid:
			r.cache.SetAccountBySid(write.key, write.account)
		case writeAccountByCaption:
			r.cache.SetAccountByCaption(write.key, write.account)
		case writeDomain:
			r.cache.SetDomain(write.domain)
		}
	}
}

// entrySchemaClass extracts an object class label from a directory entry,
// preferring the WinNT-style schemaClassName and falling back to the most
// specific LDAP objectClass value.
func entrySchemaClass(entry Entry) string {
	if class := entry.First("schemaClassName"); class != "" {
		return class
	}
	if classes := entry.Attributes["objectClass"]; len(classes) > 0 {
		return classes[len(classes)-1]
	}
	return ""
}
