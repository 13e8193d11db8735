package sid

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CapabilityInfo describes a capability SID under the S-1-15-3 authority.
type CapabilityInfo struct {
	Sid         string
	Name        string
	Description string
	SchemaClass string
	AccountName string
}

// Hyphen-separated segment counts distinguishing the two capability forms.
// A device capability carries 4 sub-authorities after the capability marker
// (S-1-15-3 plus 4 = 8 segments); an app capability carries a SHA-256 digest
// as 8 sub-authorities (13 segments).
const (
	deviceCapabilitySegments = 8
	appCapabilitySegments    = 13

	deviceCapabilitySubAuthorities = 4
)

// wellKnownDeviceCapabilities maps device interface class GUIDs to friendly
// names. Keys are canonical uppercase GUIDs in registry brace format.
var wellKnownDeviceCapabilities = map[string]string{
	"{2EEF81BE-33FA-4800-9670-1CD474972C3F}": "Audio Capture Interface",
	"{6994AD04-93EF-11D0-A3CC-00A0C9223196}": "Audio Render Interface",
	"{E5323777-F976-4F5B-9B55-B94699C46E44}": "Webcam Interface",
	"{BFA794E4-F964-4FDB-90F6-51056BFE4B44}": "Location Sensor Interface",
	"{53D29EF7-377C-4D14-864B-EB3A85769359}": "Biometric Reader Interface",
	"{4D36E972-E325-11CE-BFC1-08002BE10318}": "Network Adapter Interface",
}

// DecodeAppCapabilitySid interprets a capability SID. Device-capability SIDs
// are translated back to their device interface class GUID and, when the
// GUID is well known, a friendly name. App-capability SIDs encode a SHA-256
// digest of the capability name and are not reversible, so they come back
// annotated as unresolvable. Anything that is not a capability SID passes
// through carrying only the SID itself.
func DecodeAppCapabilitySid(sidString string) (*CapabilityInfo, error) {
	if _, err := StringToBytes(sidString); err != nil {
		return nil, err
	}

	info := &CapabilityInfo{
		Sid:         sidString,
		Name:        sidString,
		AccountName: sidString,
		SchemaClass: "group",
	}

	switch strings.Count(sidString, "-") + 1 {
	case deviceCapabilitySegments:
		guid, err := deviceCapabilityGUID(sidString)
		if err != nil {
			return nil, err
		}
		if friendly, ok := wellKnownDeviceCapabilities[guid]; ok {
			info.Name = friendly + " device capability"
			info.Description = fmt.Sprintf("Device capability for the %s device interface class %s", friendly, guid)
		} else {
			info.Name = "Unknown device capability " + guid
			info.Description = fmt.Sprintf("Device capability for the unrecognized device interface class %s", guid)
		}
		info.AccountName = guid
	case appCapabilitySegments:
		// The trailing sub-authorities are a SHA-256 digest of the capability
		// name; the hash cannot be reversed to a friendly name.
		info.Name = sidString + " (app capability, not translatable to a name)"
		info.Description = "App capability SID; the capability name is hashed and cannot be recovered"
	default:
		info.Description = "Unrecognized capability SID layout"
	}

	return info, nil
}

// deviceCapabilityGUID reassembles the last four sub-authorities of a device
// capability SID into the device interface class GUID they encode. The
// sub-authorities are the GUID's mixed-endian binary layout read as
// little-endian words, so the bytes land in Data1/Data2/Data3 little-endian
// order and Data4 as-is.
func deviceCapabilityGUID(sidString string) (string, error) {
	subs, err := SubAuthorities(sidString)
	if err != nil {
		return "", err
	}
	if len(subs) < deviceCapabilitySubAuthorities {
		return "", fmt.Errorf("%w: device capability SID needs %d sub-authorities", ErrMalformedSid, deviceCapabilitySubAuthorities)
	}

	mixed := make([]byte, 16)
	for i, sub := range subs[len(subs)-deviceCapabilitySubAuthorities:] {
		binary.LittleEndian.PutUint32(mixed[4*i:], sub)
	}

	guid, err := uuid.FromBytes(mixedEndianToStandard(mixed))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSid, err)
	}

	return "{" + strings.ToUpper(guid.String()) + "}", nil
}

// mixedEndianToStandard converts the Windows mixed-endian GUID byte order
// (Data1, Data2, Data3 little-endian, Data4 big-endian) to the standard
// network order used by the textual GUID layout.
func mixedEndianToStandard(mixed []byte) []byte {
	standard := make([]byte, 16)

	standard[0] = mixed[3]
	standard[1] = mixed[2]
	standard[2] = mixed[1]
	standard[3] = mixed[0]

	standard[4] = mixed[5]
	standard[5] = mixed[4]

	standard[6] = mixed[7]
	standard[7] = mixed[6]

	copy(standard[8:], mixed[8:])

	return standard
}

// DeviceCapabilityName returns the friendly name registered for a device
// interface class GUID, if any. The GUID must be in registry brace format.
func DeviceCapabilityName(guid string) (string, bool) {
	name, ok := wellKnownDeviceCapabilities[strings.ToUpper(guid)]
	return name, ok
}
