package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"

	"github.com/IMJLA/go-adsi/pkg/identity"
	"github.com/IMJLA/go-adsi/pkg/sid"
)

// binaryAttributes are directory attributes whose raw bytes must be
// converted before they are useful as strings.
var binaryAttributes = map[string]struct{}{
	"objectsid": {},
}

// Connector adapts a directory Client to the collaborator interfaces the
// identity resolver consumes. Translation runs as samaccountname and
// objectSid filter searches; domain information comes from the root DSE
// and the crossRef objects in the configuration partition.
type Connector struct {
	client *Client
	log    identity.Logger

	mu         sync.Mutex
	baseDN     string
	partitions []partitionInfo
}

// partitionInfo is one crossRef from CN=Partitions plus the SID of the
// domain head it names.
type partitionInfo struct {
	NetbiosName   string
	DnsRoot       string
	NamingContext string
	DomainSid     string
}

// NewConnector wraps a client.
func NewConnector(client *Client, log identity.Logger) *Connector {
	if log == nil {
		log = identity.NopLogger{}
	}
	return &Connector{client: client, log: log}
}

var _ identity.SidTranslator = (*Connector)(nil)
var _ identity.DirectorySearcher = (*Connector)(nil)
var _ identity.DomainLookup = (*Connector)(nil)
var _ identity.GroupEnumerator = (*Connector)(nil)
var _ identity.ServiceSidLookup = (*Connector)(nil)

// TranslateSidToName searches the directory for an object carrying the
// SID and reports its account name as authority\name.
func (c *Connector) TranslateSidToName(ctx context.Context, sidString string) (string, bool, error) {
	if !sid.IsSidString(sidString) {
		return "", false, nil
	}

	base, err := c.defaultBase(ctx)
	if err != nil {
		return "", false, err
	}

	raw, err := sid.StringToBytes(sidString)
	if err != nil {
		return "", false, nil
	}

	result, err := c.client.Search(ctx, &SearchRequest{
		BaseDN:     base,
		Scope:      ScopeSubtree,
		Filter:     fmt.Sprintf("(objectSid=%s)", escapeBinary(raw)),
		Attributes: []string{"sAMAccountName", "objectSid"},
		SizeLimit:  1,
		TimeLimit:  c.client.config.Timeout,
	})
	if err != nil {
		return "", false, err
	}
	if len(result.Entries) == 0 {
		return "", false, nil
	}

	name := result.Entries[0].GetAttributeValue("sAMAccountName")
	if name == "" {
		return "", false, nil
	}

	netbios, err := c.localNetbiosName(ctx)
	if err != nil || netbios == "" {
		return name, true, nil
	}
	return netbios + "\\" + name, true, nil
}

// TranslateNameToSid searches for an account by samaccountname and
// reports its SID string.
func (c *Connector) TranslateNameToSid(ctx context.Context, domainOrServer, name string) (string, bool, error) {
	if name == "" {
		return "", false, nil
	}

	base, err := c.baseForAuthority(ctx, domainOrServer)
	if err != nil {
		return "", false, err
	}
	if base == "" {
		return "", false, nil
	}

	result, err := c.client.Search(ctx, &SearchRequest{
		BaseDN:     base,
		Scope:      ScopeSubtree,
		Filter:     fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(name)),
		Attributes: []string{"objectSid"},
		SizeLimit:  1,
		TimeLimit:  c.client.config.Timeout,
	})
	if err != nil {
		return "", false, err
	}
	if len(result.Entries) == 0 {
		return "", false, nil
	}

	sidString := rawSidString(result.Entries[0])
	if sidString == "" {
		return "", false, nil
	}
	return sidString, true, nil
}

// SearchDirectory runs a paged subtree search rooted at rootDn.
func (c *Connector) SearchDirectory(ctx context.Context, rootDn, filter string, attributes []string) ([]identity.Entry, error) {
	result, err := c.client.SearchWithPaging(ctx, &SearchRequest{
		BaseDN:     rootDn,
		Scope:      ScopeSubtree,
		Filter:     filter,
		Attributes: withSidAttribute(attributes),
		TimeLimit:  c.client.config.Timeout,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]identity.Entry, 0, len(result.Entries))
	for _, raw := range result.Entries {
		entries = append(entries, convertEntry(raw))
	}
	return entries, nil
}

// PointLookup fetches one object by path. Distinguished names are read
// directly; WinNT-style paths fall back to a samaccountname search for
// the leaf at the default naming context.
func (c *Connector) PointLookup(ctx context.Context, directoryPath string, attributes []string) (identity.Entry, bool, error) {
	if dn, ok := pathToDN(directoryPath); ok {
		raw, err := c.client.Lookup(ctx, dn, withSidAttribute(attributes))
		if err != nil {
			if IsNotFoundError(err) {
				return identity.Entry{}, false, nil
			}
			return identity.Entry{}, false, err
		}
		return convertEntry(raw), true, nil
	}

	leaf := pathLeaf(directoryPath)
	if leaf == "" {
		return identity.Entry{}, false, nil
	}

	base, err := c.defaultBase(ctx)
	if err != nil {
		return identity.Entry{}, false, err
	}

	result, err := c.client.Search(ctx, &SearchRequest{
		BaseDN:     base,
		Scope:      ScopeSubtree,
		Filter:     fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(leaf)),
		Attributes: withSidAttribute(attributes),
		SizeLimit:  1,
		TimeLimit:  c.client.config.Timeout,
	})
	if err != nil {
		return identity.Entry{}, false, err
	}
	if len(result.Entries) == 0 {
		return identity.Entry{}, false, nil
	}
	return convertEntry(result.Entries[0]), true, nil
}

// PointLookupBatch looks up each path independently. A miss or failure
// on one path never disturbs the others; only found entries come back.
func (c *Connector) PointLookupBatch(ctx context.Context, directoryPaths []string, attributes []string) ([]identity.Entry, error) {
	entries := make([]identity.Entry, 0, len(directoryPaths))
	for _, path := range directoryPaths {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		entry, found, err := c.PointLookup(ctx, path, attributes)
		if err != nil {
			c.log.Debug("point lookup failed", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		if found {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// LookupDomainInfo matches the identifier against the crossRef partitions
// the forest publishes. NetBIOS names, DNS names, and SID prefixes all
// match case-insensitively.
func (c *Connector) LookupDomainInfo(ctx context.Context, identifier string) (identity.DomainDescriptor, bool, error) {
	if identifier == "" {
		return identity.DomainDescriptor{}, false, nil
	}

	partitions, err := c.loadPartitions(ctx)
	if err != nil {
		return identity.DomainDescriptor{}, false, err
	}

	for _, part := range partitions {
		if strings.EqualFold(identifier, part.NetbiosName) ||
			strings.EqualFold(identifier, part.DnsRoot) ||
			strings.EqualFold(identifier, part.DomainSid) {
			return identity.DomainDescriptor{
				NetbiosName:       part.NetbiosName,
				DnsName:           part.DnsRoot,
				SidPrefix:         part.DomainSid,
				DistinguishedName: part.NamingContext,
			}, true, nil
		}
	}
	return identity.DomainDescriptor{}, false, nil
}

// EnumerateGroupMembers reads the group's member attribute and reports
// each member DN as an LDAP path scoped to its domain.
func (c *Connector) EnumerateGroupMembers(ctx context.Context, groupPath string) ([]identity.Member, error) {
	entry, found, err := c.PointLookup(ctx, groupPath, []string{"member", "sAMAccountName"})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, newOperationError("enumerate_members", ErrorCategoryNotFound,
			fmt.Sprintf("group %s not found", groupPath))
	}

	memberDNs := entry.Attributes["member"]
	members := make([]identity.Member, 0, len(memberDNs))
	for _, dn := range memberDNs {
		members = append(members, identity.Member{
			Path: c.memberPath(ctx, dn),
		})
	}
	return members, nil
}

// LookupServiceSid derives the service SID locally. Virtual service
// account SIDs are a pure function of the service name, so no directory
// round trip is needed.
func (c *Connector) LookupServiceSid(_ context.Context, serviceName, _ string) (string, bool, error) {
	if serviceName == "" {
		return "", false, nil
	}
	return sid.ServiceNameToSid(serviceName), true, nil
}

// memberPath renders a member DN as LDAP://<domain>/<dn> so the expander
// can recover the member's authority from the path.
func (c *Connector) memberPath(ctx context.Context, dn string) string {
	domain := dnToDomain(dn)
	if domain == "" {
		if netbios, err := c.localNetbiosName(ctx); err == nil {
			domain = netbios
		}
	}
	if domain == "" {
		return "LDAP://" + dn
	}
	return "LDAP://" + domain + "/" + dn
}

// defaultBase resolves and caches the default naming context.
func (c *Connector) defaultBase(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.baseDN
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	base, err := c.client.GetBaseDN(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.baseDN = base
	c.mu.Unlock()
	return base, nil
}

// baseForAuthority maps a domain or server identifier to the naming
// context to search. Unknown authorities search the default context.
func (c *Connector) baseForAuthority(ctx context.Context, authority string) (string, error) {
	if authority != "" {
		descriptor, found, err := c.LookupDomainInfo(ctx, authority)
		if err != nil {
			return "", err
		}
		if found && descriptor.DistinguishedName != "" {
			return descriptor.DistinguishedName, nil
		}
	}
	return c.defaultBase(ctx)
}

// localNetbiosName reports the NetBIOS name of the domain behind the
// default naming context.
func (c *Connector) localNetbiosName(ctx context.Context) (string, error) {
	base, err := c.defaultBase(ctx)
	if err != nil {
		return "", err
	}
	partitions, err := c.loadPartitions(ctx)
	if err != nil {
		return "", err
	}
	for _, part := range partitions {
		if strings.EqualFold(part.NamingContext, base) {
			return part.NetbiosName, nil
		}
	}
	return "", nil
}

// loadPartitions reads the forest's domain crossRef objects once and
// caches them together with each domain's SID.
func (c *Connector) loadPartitions(ctx context.Context) ([]partitionInfo, error) {
	c.mu.Lock()
	cached := c.partitions
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	dse, err := c.client.GetRootDSE(ctx)
	if err != nil {
		return nil, err
	}
	if dse.ConfigurationNamingContext == "" {
		return nil, newOperationError("load_partitions", ErrorCategoryServer,
			"no configurationNamingContext in root DSE")
	}

	result, err := c.client.SearchWithPaging(ctx, &SearchRequest{
		BaseDN:     "CN=Partitions," + dse.ConfigurationNamingContext,
		Scope:      ScopeOneLevel,
		Filter:     "(&(objectClass=crossRef)(nETBIOSName=*))",
		Attributes: []string{"nETBIOSName", "dnsRoot", "nCName"},
		TimeLimit:  c.client.config.Timeout,
	})
	if err != nil {
		return nil, err
	}

	partitions := make([]partitionInfo, 0, len(result.Entries))
	for _, entry := range result.Entries {
		part := partitionInfo{
			NetbiosName:   entry.GetAttributeValue("nETBIOSName"),
			DnsRoot:       entry.GetAttributeValue("dnsRoot"),
			NamingContext: entry.GetAttributeValue("nCName"),
		}
		if part.NamingContext != "" {
			part.DomainSid = c.domainHeadSid(ctx, part.NamingContext)
		}
		partitions = append(partitions, part)
	}

	c.mu.Lock()
	c.partitions = partitions
	c.mu.Unlock()

	c.log.Debug("loaded domain partitions", map[string]any{
		"count": len(partitions),
	})
	return partitions, nil
}

// domainHeadSid reads the objectSid of a domain naming context head.
// Failure leaves the SID empty rather than failing partition loading.
func (c *Connector) domainHeadSid(ctx context.Context, namingContext string) string {
	entry, err := c.client.Lookup(ctx, namingContext, []string{"objectSid"})
	if err != nil {
		return ""
	}
	return rawSidString(entry)
}

// convertEntry flattens an LDAP entry into the resolver's attribute bag,
// decoding binary attributes to their string forms.
func convertEntry(raw *ldap.Entry) identity.Entry {
	attributes := make(map[string][]string, len(raw.Attributes))
	for _, attr := range raw.Attributes {
		if _, binary := binaryAttributes[strings.ToLower(attr.Name)]; binary {
			values := make([]string, 0, len(attr.ByteValues))
			for _, b := range attr.ByteValues {
				if s, err := sid.BytesToString(b); err == nil {
					values = append(values, s)
				}
			}
			attributes[attr.Name] = values
			continue
		}
		attributes[attr.Name] = attr.Values
	}
	return identity.Entry{Path: raw.DN, Attributes: attributes}
}

// rawSidString decodes the objectSid attribute bytes of an entry.
func rawSidString(entry *ldap.Entry) string {
	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return ""
	}
	s, err := sid.BytesToString(raw)
	if err != nil {
		return ""
	}
	return s
}

// withSidAttribute ensures objectSid is requested so entries carry the
// decoded SID the resolver keys on.
func withSidAttribute(attributes []string) []string {
	for _, attr := range attributes {
		if strings.EqualFold(attr, "objectSid") {
			return attributes
		}
	}
	out := make([]string, 0, len(attributes)+1)
	out = append(out, attributes...)
	return append(out, "objectSid")
}

// pathToDN reports whether a directory path is a bare or LDAP-prefixed
// distinguished name and returns the DN.
func pathToDN(path string) (string, bool) {
	trimmed := path
	if _, rest, found := strings.Cut(trimmed, "://"); found {
		if !strings.HasPrefix(strings.ToUpper(path), "LDAP") {
			return "", false
		}
		trimmed = rest
		// Strip a leading server segment ahead of the DN.
		if slash := strings.Index(trimmed, "/"); slash >= 0 && !strings.Contains(trimmed[:slash], "=") {
			trimmed = trimmed[slash+1:]
		}
	}
	if strings.Contains(trimmed, "=") {
		return trimmed, true
	}
	return "", false
}

// pathLeaf extracts the final name segment of a directory path.
func pathLeaf(path string) string {
	trimmed := path
	if _, rest, found := strings.Cut(trimmed, "://"); found {
		trimmed = rest
	}
	trimmed = strings.Trim(trimmed, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}

// dnToDomain derives the DNS domain name from the DC components of a DN.
func dnToDomain(dn string) string {
	var labels []string
	for _, rdn := range strings.Split(dn, ",") {
		rdn = strings.TrimSpace(rdn)
		if value, found := strings.CutPrefix(rdn, "DC="); found {
			labels = append(labels, value)
		} else if value, found := strings.CutPrefix(rdn, "dc="); found {
			labels = append(labels, value)
		}
	}
	return strings.Join(labels, ".")
}

// escapeBinary renders raw bytes as an LDAP filter value.
func escapeBinary(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, v := range b {
		fmt.Fprintf(&sb, "\\%02x", v)
	}
	return sb.String()
}
