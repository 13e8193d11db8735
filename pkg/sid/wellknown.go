package sid

import "strings"

// WellKnownIdentity is a descriptive record for a fixed, non-domain-specific
// security principal.
type WellKnownIdentity struct {
	Sid         string
	Name        string
	Caption     string
	Domain      string
	Description string
	SchemaClass string
}

// wellKnownBySid maps well-known SID strings to descriptive records.
// Reference: https://learn.microsoft.com/en-us/windows-server/identity/ad-ds/manage/understand-security-identifiers
var wellKnownBySid = map[string]WellKnownIdentity{
	"S-1-0-0": {
		Sid: "S-1-0-0", Name: "Nobody", Caption: `NULL SID AUTHORITY\Nobody`,
		Domain: "NULL SID AUTHORITY", SchemaClass: "user",
		Description: "A group with no members, used when a SID value is unknown",
	},
	"S-1-1-0": {
		Sid: "S-1-1-0", Name: "Everyone", Caption: "Everyone",
		Domain: "WORLD SID AUTHORITY", SchemaClass: "group",
		Description: "All users and interactive, network, dial-up, and authenticated logons",
	},
	"S-1-2-0": {
		Sid: "S-1-2-0", Name: "LOCAL", Caption: "LOCAL",
		Domain: "LOCAL SID AUTHORITY", SchemaClass: "group",
		Description: "Users who sign in to terminals that are locally (physically) connected to the system",
	},
	"S-1-2-1": {
		Sid: "S-1-2-1", Name: "CONSOLE LOGON", Caption: "CONSOLE LOGON",
		Domain: "LOCAL SID AUTHORITY", SchemaClass: "group",
		Description: "A group that includes users who are signed in to the physical console",
	},
	"S-1-3-0": {
		Sid: "S-1-3-0", Name: "CREATOR OWNER", Caption: "CREATOR OWNER",
		Domain: "CREATOR SID AUTHORITY", SchemaClass: "user",
		Description: "Placeholder replaced by the SID of the object's creator",
	},
	"S-1-3-1": {
		Sid: "S-1-3-1", Name: "CREATOR GROUP", Caption: "CREATOR GROUP",
		Domain: "CREATOR SID AUTHORITY", SchemaClass: "group",
		Description: "Placeholder replaced by the primary-group SID of the object's creator",
	},
	"S-1-3-4": {
		Sid: "S-1-3-4", Name: "OWNER RIGHTS", Caption: "OWNER RIGHTS",
		Domain: "CREATOR SID AUTHORITY", SchemaClass: "group",
		Description: "Represents the current owner of an object",
	},
	"S-1-5-1": {
		Sid: "S-1-5-1", Name: "DIALUP", Caption: `NT AUTHORITY\DIALUP`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Users signed in through a dial-up connection",
	},
	"S-1-5-2": {
		Sid: "S-1-5-2", Name: "NETWORK", Caption: `NT AUTHORITY\NETWORK`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Users signed in through a network connection",
	},
	"S-1-5-3": {
		Sid: "S-1-5-3", Name: "BATCH", Caption: `NT AUTHORITY\BATCH`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Users signed in through a batch queue facility",
	},
	"S-1-5-4": {
		Sid: "S-1-5-4", Name: "INTERACTIVE", Caption: `NT AUTHORITY\INTERACTIVE`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Users signed in for interactive operation",
	},
	"S-1-5-6": {
		Sid: "S-1-5-6", Name: "SERVICE", Caption: `NT AUTHORITY\SERVICE`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Security principals signed in as a service",
	},
	"S-1-5-7": {
		Sid: "S-1-5-7", Name: "ANONYMOUS LOGON", Caption: `NT AUTHORITY\ANONYMOUS LOGON`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "Users signed in anonymously",
	},
	"S-1-5-9": {
		Sid: "S-1-5-9", Name: "ENTERPRISE DOMAIN CONTROLLERS", Caption: `NT AUTHORITY\ENTERPRISE DOMAIN CONTROLLERS`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "All domain controllers in a forest of domains",
	},
	"S-1-5-10": {
		Sid: "S-1-5-10", Name: "SELF", Caption: `NT AUTHORITY\SELF`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "Placeholder in an ACE for the principal the object represents",
	},
	"S-1-5-11": {
		Sid: "S-1-5-11", Name: "Authenticated Users", Caption: `NT AUTHORITY\Authenticated Users`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "All users and computers whose identities have been authenticated",
	},
	"S-1-5-12": {
		Sid: "S-1-5-12", Name: "RESTRICTED", Caption: `NT AUTHORITY\RESTRICTED`,
		Domain: "NT AUTHORITY", SchemaClass: "group",
		Description: "Users and computers whose security contexts carry restricting SIDs",
	},
	"S-1-5-17": {
		Sid: "S-1-5-17", Name: "IUSR", Caption: `NT AUTHORITY\IUSR`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "Default Internet Information Services account",
	},
	"S-1-5-18": {
		Sid: "S-1-5-18", Name: "SYSTEM", Caption: `NT AUTHORITY\SYSTEM`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "An identity used locally by the operating system and by services",
	},
	"S-1-5-19": {
		Sid: "S-1-5-19", Name: "LOCAL SERVICE", Caption: `NT AUTHORITY\LOCAL SERVICE`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "An identity used by local services that presents anonymous credentials on the network",
	},
	"S-1-5-20": {
		Sid: "S-1-5-20", Name: "NETWORK SERVICE", Caption: `NT AUTHORITY\NETWORK SERVICE`,
		Domain: "NT AUTHORITY", SchemaClass: "user",
		Description: "An identity used by services that presents the computer's credentials on the network",
	},
	"S-1-5-32-544": {
		Sid: "S-1-5-32-544", Name: "Administrators", Caption: `BUILTIN\Administrators`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group with full control of the system",
	},
	"S-1-5-32-545": {
		Sid: "S-1-5-32-545", Name: "Users", Caption: `BUILTIN\Users`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group whose members are prevented from making system-wide changes",
	},
	"S-1-5-32-546": {
		Sid: "S-1-5-32-546", Name: "Guests", Caption: `BUILTIN\Guests`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group for temporary sign-ins with a restricted profile",
	},
	"S-1-5-32-547": {
		Sid: "S-1-5-32-547", Name: "Power Users", Caption: `BUILTIN\Power Users`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group retained for backward compatibility",
	},
	"S-1-5-32-551": {
		Sid: "S-1-5-32-551", Name: "Backup Operators", Caption: `BUILTIN\Backup Operators`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group whose members may bypass file security to back up files",
	},
	"S-1-5-32-555": {
		Sid: "S-1-5-32-555", Name: "Remote Desktop Users", Caption: `BUILTIN\Remote Desktop Users`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group whose members are granted the right to sign in remotely",
	},
	"S-1-5-32-558": {
		Sid: "S-1-5-32-558", Name: "Performance Monitor Users", Caption: `BUILTIN\Performance Monitor Users`,
		Domain: "BUILTIN", SchemaClass: "group",
		Description: "A built-in group whose members may monitor performance counters",
	},
	"S-1-5-80-0": {
		Sid: "S-1-5-80-0", Name: "ALL SERVICES", Caption: `NT SERVICE\ALL SERVICES`,
		Domain: "NT SERVICE", SchemaClass: "group",
		Description: "A group that includes all service processes configured on the system",
	},
	"S-1-15-2-1": {
		Sid: "S-1-15-2-1", Name: "ALL APPLICATION PACKAGES", Caption: `APPLICATION PACKAGE AUTHORITY\ALL APPLICATION PACKAGES`,
		Domain: "APPLICATION PACKAGE AUTHORITY", SchemaClass: "group",
		Description: "All applications running in an app package context",
	},
	"S-1-15-2-2": {
		Sid: "S-1-15-2-2", Name: "ALL RESTRICTED APPLICATION PACKAGES", Caption: `APPLICATION PACKAGE AUTHORITY\ALL RESTRICTED APPLICATION PACKAGES`,
		Domain: "APPLICATION PACKAGE AUTHORITY", SchemaClass: "group",
		Description: "All applications running in a restricted app package context",
	},
}

// wellKnownByCaption is the caption-keyed view of the same table, built once
// at init with lowercased keys for case-insensitive lookup.
var wellKnownByCaption = func() map[string]WellKnownIdentity {
	byCaption := make(map[string]WellKnownIdentity, len(wellKnownBySid))
	for _, identity := range wellKnownBySid {
		byCaption[strings.ToLower(identity.Caption)] = identity
	}
	return byCaption
}()

// LookupWellKnownSid returns the descriptive record for a well-known SID
// string, if the SID is in the static table.
func LookupWellKnownSid(sidString string) (WellKnownIdentity, bool) {
	identity, ok := wellKnownBySid[sidString]
	return identity, ok
}

// LookupWellKnownCaption returns the descriptive record for a well-known
// caption such as `BUILTIN\Administrators`. The lookup is case-insensitive.
func LookupWellKnownCaption(caption string) (WellKnownIdentity, bool) {
	identity, ok := wellKnownByCaption[strings.ToLower(caption)]
	return identity, ok
}
