package identity

import "context"

// Entry is a raw attribute bag returned by a directory collaborator.
type Entry struct {
	// Path is the directory path or distinguished name of the object.
	Path string

	// Attributes holds the string attribute values keyed by attribute name.
	Attributes map[string][]string
}

// First returns the first value of the named attribute, or "".
func (e Entry) First(attribute string) string {
	if values := e.Attributes[attribute]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Member is one immediate group member as reported by the enumeration
// collaborator.
type Member struct {
	// Path is the member's directory path, such as WinNT://DOMAIN/name.
	Path string

	// Raw carries any attributes the enumeration already produced.
	Raw map[string][]string
}

// SidTranslator performs platform account/SID translation. Not-found is
// reported through the boolean, not through the error: translation failure
// is routine for orphaned and foreign SIDs.
type SidTranslator interface {
	TranslateSidToName(ctx context.Context, sidString string) (name string, found bool, err error)
	TranslateNameToSid(ctx context.Context, domainOrServer, name string) (sidString string, found bool, err error)
}

// DirectorySearcher executes directory queries. SearchDirectory serves
// filter searches rooted at a distinguished name; PointLookup fetches one
// object by path; PointLookupBatch fetches a batch of paths in one dispatch.
type DirectorySearcher interface {
	SearchDirectory(ctx context.Context, rootDn, filter string, attributes []string) ([]Entry, error)
	PointLookup(ctx context.Context, directoryPath string, attributes []string) (Entry, bool, error)
	PointLookupBatch(ctx context.Context, directoryPaths []string, attributes []string) ([]Entry, error)
}

// DomainLookup resolves a domain identifier (NetBIOS name, DNS name, or SID
// prefix) to its descriptor.
type DomainLookup interface {
	LookupDomainInfo(ctx context.Context, identifier string) (DomainDescriptor, bool, error)
}

// GroupEnumerator returns a group's immediate members.
type GroupEnumerator interface {
	EnumerateGroupMembers(ctx context.Context, groupPath string) ([]Member, error)
}

// ServiceSidLookup resolves a service name to its service account SID on a
// given server.
type ServiceSidLookup interface {
	LookupServiceSid(ctx context.Context, serviceName, server string) (sidString string, found bool, err error)
}

// Collaborators bundles the capability interfaces a Resolver consumes. Nil
// fields are legal; a branch that needs a missing collaborator produces no
// result and the resolution falls through.
type Collaborators struct {
	Translator SidTranslator
	Searcher   DirectorySearcher
	Domains    DomainLookup
	Groups     GroupEnumerator
	Services   ServiceSidLookup
}
