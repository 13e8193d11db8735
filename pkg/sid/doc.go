/*
Package sid implements the Windows security identifier (SID) codec used
throughout go-adsi.

A SID has two equivalent representations:

  - Textual: S-<revision>-<authority>-<subauthority>...
  - Binary: revision byte, sub-authority count byte, 48-bit big-endian
    identifier authority, then one 32-bit little-endian word per
    sub-authority.

StringToBytes and BytesToString convert between the two losslessly. Both
reject anything that is not a revision-1 SID with ErrMalformedSid.

The package also carries the static well-known identity table (built-in
accounts, NT AUTHORITY principals, application package authorities) and the
decoder for capability SIDs under the S-1-15-3 authority, whose trailing
sub-authorities encode either a device interface class GUID or an
app-capability SHA-256 digest.
*/
package sid
