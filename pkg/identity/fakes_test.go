package identity

import (
	"context"
	"errors"
	"strings"
)

// fakeDirectory implements every collaborator interface with canned data
// and per-operation call counters so tests can assert on round-trip counts.
type fakeDirectory struct {
	sidToName   map[string]string           // SID -> DOMAIN\name
	nameToSid   map[string]string           // DOMAIN\name -> SID
	domains     map[string]DomainDescriptor // identifier -> descriptor
	searchBy    map[string][]Entry          // samaccountname -> entries
	pointBy     map[string]Entry            // path -> entry
	members     map[string][]Member         // group path -> members
	serviceSids map[string]string           // service name -> SID

	failSearch bool

	translateSidCalls  int
	translateNameCalls int
	searchCalls        int
	pointCalls         int
	batchCalls         int
	domainCalls        int
	enumCalls          int
	serviceCalls       int

	lastFilter string
}

func (f *fakeDirectory) collaborators() Collaborators {
	return Collaborators{
		Translator: f,
		Searcher:   f,
		Domains:    f,
		Groups:     f,
		Services:   f,
	}
}

// totalCalls sums every collaborator invocation seen so far.
func (f *fakeDirectory) totalCalls() int {
	return f.translateSidCalls + f.translateNameCalls + f.searchCalls +
		f.pointCalls + f.batchCalls + f.domainCalls + f.enumCalls + f.serviceCalls
}

func (f *fakeDirectory) TranslateSidToName(_ context.Context, sidString string) (string, bool, error) {
	f.translateSidCalls++
	name, found := f.sidToName[sidString]
	return name, found, nil
}

func (f *fakeDirectory) TranslateNameToSid(_ context.Context, domainOrServer, name string) (string, bool, error) {
	f.translateNameCalls++
	sidString, found := f.nameToSid[domainOrServer+`\`+name]
	return sidString, found, nil
}

func (f *fakeDirectory) SearchDirectory(_ context.Context, _, filter string, _ []string) ([]Entry, error) {
	f.searchCalls++
	f.lastFilter = filter
	if f.failSearch {
		return nil, errors.New("server unavailable")
	}

	var entries []Entry
	for name, matches := range f.searchBy {
		if strings.Contains(filter, "(samaccountname="+name+")") {
			entries = append(entries, matches...)
		}
	}
	return entries, nil
}

func (f *fakeDirectory) PointLookup(_ context.Context, directoryPath string, _ []string) (Entry, bool, error) {
	f.pointCalls++
	entry, found := f.pointBy[directoryPath]
	return entry, found, nil
}

func (f *fakeDirectory) PointLookupBatch(_ context.Context, directoryPaths []string, _ []string) ([]Entry, error) {
	f.batchCalls++
	var entries []Entry
	for _, path := range directoryPaths {
		if entry, found := f.pointBy[path]; found {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *fakeDirectory) LookupDomainInfo(_ context.Context, identifier string) (DomainDescriptor, bool, error) {
	f.domainCalls++
	descriptor, found := f.domains[identifier]
	return descriptor, found, nil
}

func (f *fakeDirectory) EnumerateGroupMembers(_ context.Context, groupPath string) ([]Member, error) {
	f.enumCalls++
	return f.members[groupPath], nil
}

func (f *fakeDirectory) LookupServiceSid(_ context.Context, serviceName, _ string) (string, bool, error) {
	f.serviceCalls++
	sidString, found := f.serviceSids[serviceName]
	return sidString, found, nil
}

// contosoDescriptor is the descriptor most tests share.
var contosoDescriptor = DomainDescriptor{
	NetbiosName:       "CONTOSO",
	DnsName:           "contoso.example.com",
	SidPrefix:         "S-1-5-21-1111111111-2222222222-3333333333",
	DistinguishedName: "DC=contoso,DC=example,DC=com",
}

func contosoSid(rid string) string {
	return contosoDescriptor.SidPrefix + "-" + rid
}

var testServer = ServerContext{
	Server:      "srv01.contoso.example.com",
	NetbiosName: "SRV01",
	DnsName:     "srv01.contoso.example.com",
	Flavor:      FlavorLDAP,
}
