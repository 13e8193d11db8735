package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGroupPath = "WinNT://CONTOSO/Admins"

func expanderFixture() *fakeDirectory {
	aliceSid := contosoSid("1103")
	bobSid := contosoSid("1104")
	carolSid := contosoSid("1105")

	return &fakeDirectory{
		domains: map[string]DomainDescriptor{
			"CONTOSO":                    contosoDescriptor,
			contosoDescriptor.SidPrefix: contosoDescriptor,
		},
		members: map[string][]Member{
			testGroupPath: {
				{Path: "WinNT://CONTOSO/alice"},
				{Path: "WinNT://CONTOSO/bob"},
				{Path: "WinNT://CONTOSO/carol"},
				{Path: "WinNT://WKSTN01/local1"},
				{Path: "WinNT://WKSTN01/local2"},
			},
		},
		searchBy: map[string][]Entry{
			"alice": {{Attributes: map[string][]string{"objectSid": {aliceSid}, "sAMAccountName": {"alice"}}}},
			"bob":   {{Attributes: map[string][]string{"objectSid": {bobSid}, "sAMAccountName": {"bob"}}}},
			"carol": {{Attributes: map[string][]string{"objectSid": {carolSid}, "sAMAccountName": {"carol"}}}},
		},
		pointBy: map[string]Entry{
			"WinNT://WKSTN01/local1": {
				Path:       "WinNT://WKSTN01/local1",
				Attributes: map[string][]string{"objectSid": {"S-1-5-21-7777777777-888888888-999999999-1001"}, "sAMAccountName": {"local1"}},
			},
			"WinNT://WKSTN01/local2": {
				Path:       "WinNT://WKSTN01/local2",
				Attributes: map[string][]string{"objectSid": {"S-1-5-21-7777777777-888888888-999999999-1002"}, "sAMAccountName": {"local2"}},
			},
		},
		sidToName: map[string]string{
			aliceSid: `CONTOSO\alice`,
			bobSid:   `CONTOSO\bob`,
			carolSid: `CONTOSO\carol`,
			"S-1-5-21-7777777777-888888888-999999999-1001": `WKSTN01\local1`,
			"S-1-5-21-7777777777-888888888-999999999-1002": `WKSTN01\local2`,
		},
		nameToSid: map[string]string{
			`CONTOSO\alice`:  aliceSid,
			`CONTOSO\bob`:    bobSid,
			`CONTOSO\carol`:  carolSid,
			`WKSTN01\local1`: "S-1-5-21-7777777777-888888888-999999999-1001",
			`WKSTN01\local2`: "S-1-5-21-7777777777-888888888-999999999-1002",
		},
	}
}

func TestExpandGroupMembers_Partitioning(t *testing.T) {
	fake := expanderFixture()
	resolver := NewResolver(NewCache(), fake.collaborators())
	expander := NewExpander(resolver)

	records, err := expander.ExpandGroupMembers(context.Background(), testGroupPath)
	require.NoError(t, err)
	require.Len(t, records, 5)

	// The three domain members share one batched search; the two workgroup
	// members share one batched point lookup.
	assert.Equal(t, 1, fake.searchCalls)
	assert.Equal(t, 1, fake.batchCalls)
	assert.Equal(t, 0, fake.pointCalls)

	assert.Contains(t, fake.lastFilter, "(samaccountname=alice)")
	assert.Contains(t, fake.lastFilter, "(samaccountname=bob)")
	assert.Contains(t, fake.lastFilter, "(samaccountname=carol)")

	shortNames := make(map[string]bool)
	for _, record := range records {
		assert.True(t, record.Resolved(), "member %s should resolve", record.OriginalReference)
		shortNames[record.ShortName] = true
	}
	assert.True(t, shortNames[`CONTOSO\alice`])
	assert.True(t, shortNames[`WKSTN01\local1`])
}

func TestExpandGroupMembers_SearchFailureDegradesBatch(t *testing.T) {
	fake := expanderFixture()
	fake.failSearch = true
	resolver := NewResolver(NewCache(), fake.collaborators())
	expander := NewExpander(resolver)

	records, err := expander.ExpandGroupMembers(context.Background(), testGroupPath)
	require.NoError(t, err)
	require.Len(t, records, 5)

	resolved := 0
	degraded := 0
	for _, record := range records {
		if record.Resolved() {
			resolved++
		} else {
			degraded++
		}
	}

	// The failed search batch degrades its three members; the point-lookup
	// batch is unaffected.
	assert.Equal(t, 3, degraded)
	assert.Equal(t, 2, resolved)
}

func TestExpandGroupMembers_MissingMemberStillProducesRecord(t *testing.T) {
	fake := expanderFixture()
	delete(fake.pointBy, "WinNT://WKSTN01/local2")
	resolver := NewResolver(NewCache(), fake.collaborators())
	expander := NewExpander(resolver)

	records, err := expander.ExpandGroupMembers(context.Background(), testGroupPath)
	require.NoError(t, err)

	// local2's entry is gone from the backend but its parsed reference is
	// still resolved through the fallback chain.
	assert.Len(t, records, 5)

	var local2 *Record
	for _, record := range records {
		if record.ShortName == `WKSTN01\local2` {
			local2 = record
		}
	}
	require.NotNil(t, local2)
	assert.True(t, local2.Resolved())
}

func TestExpandGroupMembers_EmptyGroup(t *testing.T) {
	fake := &fakeDirectory{members: map[string][]Member{}}
	resolver := NewResolver(NewCache(), fake.collaborators())
	expander := NewExpander(resolver)

	records, err := expander.ExpandGroupMembers(context.Background(), testGroupPath)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, fake.enumCalls)
}

func TestExpandGroupMembers_NoEnumerator(t *testing.T) {
	resolver := NewResolver(NewCache(), Collaborators{})
	expander := NewExpander(resolver)

	_, err := expander.ExpandGroupMembers(context.Background(), testGroupPath)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}

func TestParseMemberPath(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		expectedAuthority string
		expectedName      string
	}{
		{
			name:              "domain member",
			path:              "WinNT://CONTOSO/alice",
			expectedAuthority: "CONTOSO",
			expectedName:      "alice",
		},
		{
			name:              "workgroup computer member",
			path:              "WinNT://WORKGROUP/WKSTN01/localadmin",
			expectedAuthority: "WKSTN01",
			expectedName:      "localadmin",
		},
		{
			name:              "ldap path",
			path:              "LDAP://srv01/CN=alice,DC=contoso,DC=example,DC=com",
			expectedAuthority: "srv01",
			expectedName:      "alice",
		},
		{
			name:              "bare name",
			path:              "alice",
			expectedAuthority: "",
			expectedName:      "alice",
		},
		{
			name:              "trailing slash",
			path:              "WinNT://CONTOSO/alice/",
			expectedAuthority: "CONTOSO",
			expectedName:      "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authority, name := parseMemberPath(tt.path)
			assert.Equal(t, tt.expectedAuthority, authority)
			assert.Equal(t, tt.expectedName, name)
		})
	}
}

func TestBatchFilter(t *testing.T) {
	single := batchFilter([]memberRef{{name: "alice"}})
	assert.Equal(t, "(samaccountname=alice)", single)

	multi := batchFilter([]memberRef{{name: "alice"}, {name: "bob"}})
	assert.Equal(t, "(|(samaccountname=alice)(samaccountname=bob))", multi)

	escaped := batchFilter([]memberRef{{name: "we(ird)"}})
	assert.NotContains(t, escaped[1:len(escaped)-1], "(",
		"filter metacharacters in names must be escaped")
}
