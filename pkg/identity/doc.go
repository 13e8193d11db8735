// Package identity resolves security principal references into canonical
// identity records and expands group membership across directory boundaries.
//
// The package is the public boundary of the resolution core. A Resolver turns
// a raw reference (a SID string or a DOMAIN\name account reference) into a
// Record carrying the SID, the short account name, and the fully-qualified
// name, consulting a shared Cache, a well-known identity table, and a set of
// directory collaborator interfaces in a fixed precedence order. An Expander
// walks a group's immediate member list, partitions members between backends
// that support batched search and backends that only support point lookups,
// and normalizes every member through the Resolver.
//
// Directory access is abstracted behind the collaborator interfaces declared
// in this package; internal/directory provides the LDAP-backed
// implementation. Tests supply fakes.
package identity
