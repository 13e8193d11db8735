/*
Package directory provides the LDAP backend for identity resolution.

The package has three layers:

# Connection Management

Pool maintains authenticated connections across discovered servers:

  - SRV-based domain controller discovery with configured-URL override
  - Bounded pooling with periodic health checks
  - Simple bind and Kerberos (GSSAPI) authentication
  - StartTLS upgrade or direct LDAPS

# Client Operations

Client is a read-only query layer over the pool:

  - Single and paged searches with the simple paged results control
  - Base-scoped lookups by distinguished name
  - Root DSE introspection and Who Am I?

Operations run exactly once. A failed search or lookup is reported to the
caller as a categorized DirectoryError; nothing in this package retries.

# Resolver Integration

Connector implements the collaborator interfaces the identity package
consumes: SID and name translation through filter searches, domain
descriptor lookup through the forest's crossRef partitions, and group
member enumeration through the member attribute. Binary objectSid values
are decoded to their string form before they leave the package.

# Error Handling

DirectoryError categorizes failures (connection, authentication,
not_found, validation, server) and records the protocol result code. The
Retryable flag is advisory metadata for callers; it never drives behavior
here.

# Thread Safety

Pool, Client, and Connector are safe for concurrent use.
*/
package directory
