package identity

import "strings"

// Flavor identifies the directory dialect a server speaks.
type Flavor string

const (
	// FlavorLDAP marks hierarchical directories addressable by
	// distinguished name and searchable by filter.
	FlavorLDAP Flavor = "LDAP"

	// FlavorWinNT marks flat-namespace directories that only support
	// point lookups by path.
	FlavorWinNT Flavor = "WinNT"
)

// Record is the resolver's output: one identity normalized into its three
// textual representations. A Record is immutable once produced.
type Record struct {
	// OriginalReference is the raw reference the resolution started from.
	OriginalReference string

	// UnresolvedReference carries the original reference when resolution
	// exhausted every fallback without producing a name. Empty on success.
	UnresolvedReference string

	// SidString is the textual SID, or the original reference when no SID
	// could be derived.
	SidString string

	// ShortName is the NETBIOS\name form.
	ShortName string

	// FullyQualifiedName is the dns.domain\name form.
	FullyQualifiedName string
}

// Resolved reports whether the record carries a real resolution rather than
// pass-through data for an unresolvable reference.
func (r *Record) Resolved() bool {
	return r.UnresolvedReference == ""
}

// Account is a cached Win32-style account entry. Unresolved marks an
// exhausted resolution pinned in the cache so re-resolving the same
// reference makes no further backend calls.
type Account struct {
	Sid         string
	Caption     string // NETBIOS\name
	Domain      string
	Name        string
	SchemaClass string
	Description string
	Unresolved  bool
}

// DomainDescriptor identifies one domain by each of its addressable names.
// Any populated key can be used to recover the others through the cache.
type DomainDescriptor struct {
	NetbiosName       string
	DnsName           string
	SidPrefix         string
	DistinguishedName string
}

// Searchable reports whether the domain backs a hierarchical directory that
// can serve filter searches rooted at a distinguished name.
func (d DomainDescriptor) Searchable() bool {
	return d.DistinguishedName != ""
}

// ServerContext describes the server whose permission entries produced the
// references being resolved.
type ServerContext struct {
	Server      string
	NetbiosName string
	DnsName     string
	Flavor      Flavor
}

// SplitReference separates an account reference into its domain and name
// segments. A bare name comes back with an empty domain.
func SplitReference(reference string) (domain, name string) {
	if before, after, found := strings.Cut(reference, `\`); found {
		return before, after
	}
	return "", reference
}
