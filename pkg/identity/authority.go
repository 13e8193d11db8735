package identity

import (
	"context"
	"strings"

	"github.com/IMJLA/go-adsi/pkg/sid"
)

// authorityClass is the tagged variant a reference's domain segment
// classifies into. One handler exists per variant; generic references skip
// the authority dispatch entirely.
type authorityClass int

const (
	authorityGeneric authorityClass = iota
	authorityService
	authorityAppPackage
	authorityBuiltin
)

// classifyAuthority maps a reference's domain segment to its authority
// variant. Matching is case-insensitive.
func classifyAuthority(domain string) authorityClass {
	switch strings.ToUpper(domain) {
	case "NT SERVICE":
		return authorityService
	case "APPLICATION PACKAGE AUTHORITY":
		return authorityAppPackage
	case "BUILTIN":
		return authorityBuiltin
	default:
		return authorityGeneric
	}
}

// resolveServiceAuthority produces the account for an NT SERVICE\name
// reference. The service-control collaborator is asked first; when it is
// absent or reports not-found the SID is derived from the service name, the
// derivation being deterministic on all platforms.
func (r *Resolver) resolveServiceAuthority(ctx context.Context, name string, server ServerContext) (Account, []cacheWrite, bool, error) {
	sidString := ""
	if r.collab.Services != nil {
		derived, found, err := r.collab.Services.LookupServiceSid(ctx, name, server.Server)
		if err != nil {
			return Account{}, nil, false, err
		}
		if found {
			sidString = derived
		}
	}
	if sidString == "" {
		sidString = sid.ServiceNameToSid(name)
	}

	account := Account{
		Sid:         sidString,
		Caption:     `NT SERVICE\` + name,
		Domain:      "NT SERVICE",
		Name:        name,
		SchemaClass: "service",
	}
	return account, accountWrites(server, account), true, nil
}

// resolveAppPackageAuthority produces the account for an APPLICATION PACKAGE
// AUTHORITY\name reference from the static well-known table.
func (r *Resolver) resolveAppPackageAuthority(_ context.Context, name string, server ServerContext) (Account, []cacheWrite, bool, error) {
	known, found := sid.LookupWellKnownCaption(`APPLICATION PACKAGE AUTHORITY\` + name)
	if !found {
		return Account{}, nil, false, nil
	}

	account := wellKnownAccount(known)
	return account, accountWrites(server, account), true, nil
}

// resolveBuiltinAuthority produces the account for a BUILTIN\name reference.
// The static table answers the standard groups; anything else is fetched by
// a direct point lookup against the server.
func (r *Resolver) resolveBuiltinAuthority(ctx context.Context, name string, server ServerContext) (Account, []cacheWrite, bool, error) {
	if known, found := sid.LookupWellKnownCaption(`BUILTIN\` + name); found {
		account := wellKnownAccount(known)
		return account, accountWrites(server, account), true, nil
	}

	if r.collab.Searcher == nil {
		return Account{}, nil, false, nil
	}

	path := "WinNT://" + server.Server + "/" + name
	entry, found, err := r.collab.Searcher.PointLookup(ctx, path, accountAttributes)
	if err != nil || !found {
		return Account{}, nil, false, err
	}

	account := Account{
		Sid:         entry.First("objectSid"),
		Caption:     `BUILTIN\` + name,
		Domain:      "BUILTIN",
		Name:        name,
		SchemaClass: entry.First("schemaClassName"),
	}
	return account, accountWrites(server, account), true, nil
}

func wellKnownAccount(known sid.WellKnownIdentity) Account {
	return Account{
		Sid:         known.Sid,
		Caption:     known.Caption,
		Domain:      known.Domain,
		Name:        known.Name,
		SchemaClass: known.SchemaClass,
		Description: known.Description,
	}
}
