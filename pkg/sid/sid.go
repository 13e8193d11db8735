package sid

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/bwmarrin/go-objectsid"
)

// ErrMalformedSid is returned when input violates the SID grammar. It is
// always fatal to the single conversion that produced it; malformed SIDs are
// never silently coerced.
var ErrMalformedSid = errors.New("malformed SID")

const (
	// headerLength is revision + sub-authority count + 48-bit authority.
	headerLength = 8

	// maxSubAuthorities is the platform limit on sub-authority words.
	maxSubAuthorities = 15

	subAuthorityLength = 4
)

// IsSidString reports whether s looks like a textual revision-1 SID. It is a
// cheap prefix test for routing; it does not validate the full grammar.
func IsSidString(s string) bool {
	return strings.HasPrefix(s, "S-1-")
}

// StringToBytes parses the textual S-<revision>-<authority>-<subauthority>...
// grammar into the binary SID layout.
func StringToBytes(s string) ([]byte, error) {
	if len(s) < 5 || (s[0] != 'S' && s[0] != 's') {
		return nil, fmt.Errorf("%w: %q does not start with S-", ErrMalformedSid, s)
	}

	segments := strings.Split(s, "-")
	if len(segments) < 3 {
		return nil, fmt.Errorf("%w: %q has no authority segment", ErrMalformedSid, s)
	}

	revision, err := strconv.ParseUint(segments[1], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric revision in %q", ErrMalformedSid, s)
	}
	if revision != 1 {
		return nil, fmt.Errorf("%w: revision must be 1, got %d", ErrMalformedSid, revision)
	}

	authority, err := strconv.ParseUint(segments[2], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric authority in %q", ErrMalformedSid, s)
	}

	subAuthorities := segments[3:]
	if len(subAuthorities) > maxSubAuthorities {
		return nil, fmt.Errorf("%w: %d sub-authorities exceeds limit of %d", ErrMalformedSid, len(subAuthorities), maxSubAuthorities)
	}

	out := make([]byte, headerLength+subAuthorityLength*len(subAuthorities))
	out[0] = byte(revision)
	out[1] = byte(len(subAuthorities))

	// 48-bit big-endian authority in bytes 2-7.
	var authBytes [8]byte
	binary.BigEndian.PutUint64(authBytes[:], authority<<16)
	copy(out[2:headerLength], authBytes[:6])

	for i, segment := range subAuthorities {
		subAuthority, err := strconv.ParseUint(segment, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric sub-authority %q in %q", ErrMalformedSid, segment, s)
		}
		binary.LittleEndian.PutUint32(out[headerLength+subAuthorityLength*i:], uint32(subAuthority))
	}

	return out, nil
}

// BytesToString decodes the binary SID layout back into its textual form.
// The two forms round-trip losslessly: BytesToString(StringToBytes(s)) == s
// for every valid s.
func BytesToString(b []byte) (string, error) {
	if len(b) < headerLength {
		return "", fmt.Errorf("%w: %d bytes is shorter than the SID header", ErrMalformedSid, len(b))
	}
	if b[0] != 1 {
		return "", fmt.Errorf("%w: revision must be 1, got %d", ErrMalformedSid, b[0])
	}

	count := int(b[1])
	if count > maxSubAuthorities {
		return "", fmt.Errorf("%w: %d sub-authorities exceeds limit of %d", ErrMalformedSid, count, maxSubAuthorities)
	}
	if len(b) != headerLength+subAuthorityLength*count {
		return "", fmt.Errorf("%w: expected %d bytes for %d sub-authorities, got %d",
			ErrMalformedSid, headerLength+subAuthorityLength*count, count, len(b))
	}

	// The byte layout is validated above, so the decode cannot misindex.
	decoded := objectsid.Decode(b)
	return decoded.String(), nil
}

// SubAuthorities parses a textual SID and returns its sub-authority words.
func SubAuthorities(s string) ([]uint32, error) {
	raw, err := StringToBytes(s)
	if err != nil {
		return nil, err
	}

	count := int(raw[1])
	subs := make([]uint32, count)
	for i := range count {
		subs[i] = binary.LittleEndian.Uint32(raw[headerLength+subAuthorityLength*i:])
	}
	return subs, nil
}

// DomainPrefix truncates a textual SID at its last separator, yielding the
// SID of the issuing domain. A SID with no relative identifier is returned
// unchanged.
func DomainPrefix(s string) string {
	last := strings.LastIndex(s, "-")
	if last <= len("S-1-") {
		return s
	}
	return s[:last]
}

// ServiceNameToSid derives the SID of an NT service account: the service
// name is uppercased, encoded as UTF-16LE, hashed with SHA-1, and the digest
// split into five little-endian sub-authority words under S-1-5-80.
func ServiceNameToSid(serviceName string) string {
	encoded := utf16.Encode([]rune(strings.ToUpper(serviceName)))
	raw := make([]byte, 2*len(encoded))
	for i, r := range encoded {
		binary.LittleEndian.PutUint16(raw[2*i:], r)
	}

	digest := sha1.Sum(raw)

	var b strings.Builder
	b.WriteString("S-1-5-80")
	for i := 0; i < sha1.Size; i += subAuthorityLength {
		fmt.Fprintf(&b, "-%d", binary.LittleEndian.Uint32(digest[i:]))
	}
	return b.String()
}
