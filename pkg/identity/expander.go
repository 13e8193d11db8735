package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/IMJLA/go-adsi/pkg/sid"
)

// memberRef is one parsed group member awaiting dispatch.
type memberRef struct {
	path      string
	authority string
	name      string
}

// Expander walks a group's immediate member list and resolves every member
// through the Resolver, batching directory round-trips. Nested groups are
// not recursed into; traversal across group nesting is the caller's
// responsibility.
type Expander struct {
	resolver *Resolver
	cache    *Cache
	collab   Collaborators
	log      Logger
}

// NewExpander creates an expander sharing the resolver's cache and
// collaborators.
func NewExpander(resolver *Resolver) *Expander {
	return &Expander{
		resolver: resolver,
		cache:    resolver.cache,
		collab:   resolver.collab,
		log:      resolver.log,
	}
}

// ExpandGroupMembers enumerates the immediate members of the group at
// groupPath and resolves each into a Record. Members are partitioned
// between backends that serve batched filter searches and backends that
// only serve point lookups; one search dispatch runs per distinguished name
// and one point-lookup dispatch covers everything else.
//
// One member's failure never aborts its siblings: failed members come back
// as degraded records.
func (e *Expander) ExpandGroupMembers(ctx context.Context, groupPath string) ([]*Record, error) {
	if e.collab.Groups == nil {
		return nil, fmt.Errorf("%w: no group enumerator", ErrCollaboratorUnavailable)
	}

	var members []Member
	err := logOperation(e.log, "expand_group_members", map[string]any{
		"group": groupPath,
	}, func() error {
		var err error
		members, err = e.collab.Groups.EnumerateGroupMembers(ctx, groupPath)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating %q: %v", ErrCollaboratorUnavailable, groupPath, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	_, _, server := parseGroupPath(groupPath)

	searchable, pointLookups := e.partition(ctx, members)

	records := make([]*Record, 0, len(members))
	records = append(records, e.dispatchSearches(ctx, searchable, server)...)
	records = append(records, e.dispatchPointLookups(ctx, pointLookups, server)...)
	return records, nil
}

// partition classifies each member. A member is directory-searchable when
// its authority resolves to a domain descriptor carrying a distinguished
// name; those members accumulate into per-distinguished-name batches.
// Workgroup computers and unresolvable authorities have no distinguished
// name and join the single point-lookup batch.
func (e *Expander) partition(ctx context.Context, members []Member) (map[string][]memberRef, []memberRef) {
	searchable := make(map[string][]memberRef)
	var pointLookups []memberRef

	for _, member := range members {
		authority, name := parseMemberPath(member.Path)
		ref := memberRef{path: member.Path, authority: authority, name: name}

		if name == "" {
			e.log.Warn("Skipping member with unparseable path", map[string]any{"path": member.Path})
			continue
		}

		descriptor, writes, found := e.resolver.resolveDomain(ctx, authority)
		e.resolver.applyWrites(writes)
		if found && descriptor.Searchable() {
			dn := descriptor.DistinguishedName
			searchable[dn] = append(searchable[dn], ref)
			continue
		}
		pointLookups = append(pointLookups, ref)
	}
	return searchable, pointLookups
}

// dispatchSearches issues one filter search per distinguished name, with all
// of that domain's members OR-combined into a single samaccountname filter.
func (e *Expander) dispatchSearches(ctx context.Context, batches map[string][]memberRef, server ServerContext) []*Record {
	var records []*Record

	for dn, refs := range batches {
		if e.collab.Searcher == nil {
			records = append(records, e.degradeAll(refs)...)
			continue
		}

		entries, err := e.collab.Searcher.SearchDirectory(ctx, dn, batchFilter(refs), accountAttributes)
		if err != nil {
			e.log.Warn("Batch search failed", map[string]any{
				"base_dn": dn,
				"members": len(refs),
				"error":   err.Error(),
			})
			records = append(records, e.degradeAll(refs)...)
			continue
		}

		records = append(records, e.resolveEntries(ctx, refs, entries, server)...)
	}
	return records
}

// dispatchPointLookups issues a single batched point-lookup covering every
// flat-namespace member.
func (e *Expander) dispatchPointLookups(ctx context.Context, refs []memberRef, server ServerContext) []*Record {
	if len(refs) == 0 {
		return nil
	}
	if e.collab.Searcher == nil {
		return e.degradeAll(refs)
	}

	paths := make([]string, len(refs))
	for i, ref := range refs {
		paths[i] = ref.path
	}

	entries, err := e.collab.Searcher.PointLookupBatch(ctx, paths, accountAttributes)
	if err != nil {
		e.log.Warn("Point-lookup batch failed", map[string]any{
			"members": len(refs),
			"error":   err.Error(),
		})
		return e.degradeAll(refs)
	}

	return e.resolveEntries(ctx, refs, entries, server)
}

// resolveEntries normalizes every returned entry through the resolver and
// degrades members the dispatch did not return.
func (e *Expander) resolveEntries(ctx context.Context, refs []memberRef, entries []Entry, server ServerContext) []*Record {
	records := make([]*Record, 0, len(refs))
	matched := make(map[string]bool, len(entries))

	for _, entry := range entries {
		reference := entryReference(entry)
		if reference == "" {
			continue
		}
		matched[strings.ToLower(entryName(entry))] = true

		record, err := e.resolver.ResolveIdentity(ctx, reference, server)
		if err != nil {
			e.log.Warn("Member resolution failed", map[string]any{
				"reference": reference,
				"error":     err.Error(),
			})
			records = append(records, degradedRecord(reference))
			continue
		}
		records = append(records, record)
	}

	// Members the backend did not return still produce a record.
	for _, ref := range refs {
		if !matched[strings.ToLower(ref.name)] {
			records = append(records, e.resolveFallback(ctx, ref, server))
		}
	}
	return records
}

// resolveFallback resolves a member the batch dispatch could not cover,
// using its parsed authority\name reference.
func (e *Expander) resolveFallback(ctx context.Context, ref memberRef, server ServerContext) *Record {
	reference := ref.name
	if ref.authority != "" {
		reference = ref.authority + `\` + ref.name
	}
	record, err := e.resolver.ResolveIdentity(ctx, reference, server)
	if err != nil {
		return degradedRecord(reference)
	}
	return record
}

func (e *Expander) degradeAll(refs []memberRef) []*Record {
	records := make([]*Record, len(refs))
	for i, ref := range refs {
		reference := ref.name
		if ref.authority != "" {
			reference = ref.authority + `\` + ref.name
		}
		records[i] = degradedRecord(reference)
	}
	return records
}

// batchFilter OR-combines one samaccountname clause per member.
func batchFilter(refs []memberRef) string {
	if len(refs) == 1 {
		return fmt.Sprintf("(samaccountname=%s)", ldap.EscapeFilter(refs[0].name))
	}

	var b strings.Builder
	b.WriteString("(|")
	for _, ref := range refs {
		fmt.Fprintf(&b, "(samaccountname=%s)", ldap.EscapeFilter(ref.name))
	}
	b.WriteString(")")
	return b.String()
}

// parseMemberPath recovers {authority, name} from a member's directory
// path, such as WinNT://DOMAIN/name, WinNT://DOMAIN/computer/name, or
// LDAP://server/CN=name,DC=domain.
func parseMemberPath(path string) (authority, name string) {
	trimmed := path
	if _, rest, found := strings.Cut(trimmed, "://"); found {
		trimmed = rest
	}

	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	switch len(segments) {
	case 0:
		return "", ""
	case 1:
		return "", leafName(segments[0])
	default:
		// The second-to-last segment scopes the leaf: for
		// WinNT://DOMAIN/computer/name the computer is the authority the
		// member belongs to, not the domain.
		return segments[len(segments)-2], leafName(segments[len(segments)-1])
	}
}

// parseGroupPath recovers the group's source authority and name, plus a
// server context for resolving its members.
func parseGroupPath(groupPath string) (authority, name string, server ServerContext) {
	flavor := FlavorWinNT
	if strings.HasPrefix(strings.ToUpper(groupPath), "LDAP:") {
		flavor = FlavorLDAP
	}

	authority, name = parseMemberPath(groupPath)
	server = ServerContext{
		Server:      authority,
		NetbiosName: authority,
		Flavor:      flavor,
	}
	return authority, name, server
}

// leafName strips an RDN prefix such as CN= from an LDAP-style leaf.
func leafName(segment string) string {
	if _, value, found := strings.Cut(segment, "="); found {
		if comma := strings.Index(value, ","); comma >= 0 {
			return value[:comma]
		}
		return value
	}
	return segment
}

// entryReference derives the reference to resolve for a returned entry,
// preferring its SID over its name.
func entryReference(entry Entry) string {
	if sidString := entry.First("objectSid"); sidString != "" && sid.IsSidString(sidString) {
		return sidString
	}
	if name := entryName(entry); name != "" {
		return name
	}
	_, leaf := parseMemberPath(entry.Path)
	return leaf
}

func entryName(entry Entry) string {
	if name := entry.First("sAMAccountName"); name != "" {
		return name
	}
	_, leaf := parseMemberPath(entry.Path)
	return leaf
}
