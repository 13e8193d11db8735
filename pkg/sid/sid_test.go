package sid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSidString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "domain SID",
			input:    "S-1-5-21-3623811015-3361044348-30300820-1013",
			expected: true,
		},
		{
			name:     "well-known SID",
			input:    "S-1-5-18",
			expected: true,
		},
		{
			name:     "caption",
			input:    `CONTOSO\jdoe`,
			expected: false,
		},
		{
			name:     "bare account name",
			input:    "jdoe",
			expected: false,
		},
		{
			name:     "empty string",
			input:    "",
			expected: false,
		},
		{
			name:     "wrong revision",
			input:    "S-2-5-18",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSidString(tt.input))
		})
	}
}

func TestStringToBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
		wantErr  bool
	}{
		{
			name:  "NT AUTHORITY SYSTEM",
			input: "S-1-5-18",
			expected: []byte{
				0x01, 0x01, // revision, sub-authority count
				0x00, 0x00, 0x00, 0x00, 0x00, 0x05, // authority 5, big-endian
				0x12, 0x00, 0x00, 0x00, // 18, little-endian
			},
		},
		{
			name:  "two sub-authorities",
			input: "S-1-5-21-1004",
			expected: []byte{
				0x01, 0x02,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
				0x15, 0x00, 0x00, 0x00, // 21
				0xec, 0x03, 0x00, 0x00, // 1004
			},
		},
		{
			name:  "no sub-authorities",
			input: "S-1-5",
			expected: []byte{
				0x01, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
			},
		},
		{
			name:  "lowercase prefix accepted",
			input: "s-1-1-0",
			expected: []byte{
				0x01, 0x01,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing authority",
			input:   "S-1",
			wantErr: true,
		},
		{
			name:    "wrong revision",
			input:   "S-2-5-18",
			wantErr: true,
		},
		{
			name:    "non-numeric revision",
			input:   "S-x-5-18",
			wantErr: true,
		},
		{
			name:    "non-numeric authority",
			input:   "S-1-garbage",
			wantErr: true,
		},
		{
			name:    "non-numeric sub-authority",
			input:   "S-1-5-garbage",
			wantErr: true,
		},
		{
			name:    "sub-authority overflows uint32",
			input:   "S-1-5-4294967296",
			wantErr: true,
		},
		{
			name:    "too many sub-authorities",
			input:   "S-1-5-1-2-3-4-5-6-7-8-9-10-11-12-13-14-15-16",
			wantErr: true,
		},
		{
			name:    "not a SID at all",
			input:   `CONTOSO\jdoe`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := StringToBytes(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedSid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBytesToString(t *testing.T) {
	systemBytes := []byte{
		0x01, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x12, 0x00, 0x00, 0x00,
	}

	tests := []struct {
		name     string
		input    []byte
		expected string
		wantErr  bool
	}{
		{
			name:     "NT AUTHORITY SYSTEM",
			input:    systemBytes,
			expected: "S-1-5-18",
		},
		{
			name:    "nil bytes",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "shorter than header",
			input:   []byte{0x01, 0x01, 0x00},
			wantErr: true,
		},
		{
			name: "wrong revision",
			input: []byte{
				0x02, 0x01,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
				0x12, 0x00, 0x00, 0x00,
			},
			wantErr: true,
		},
		{
			name: "count disagrees with length",
			input: []byte{
				0x01, 0x02,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
				0x12, 0x00, 0x00, 0x00,
			},
			wantErr: true,
		},
		{
			name:    "truncated sub-authority",
			input:   append(append([]byte{}, systemBytes...), 0x01, 0x02),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := BytesToString(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedSid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSidRoundTrip(t *testing.T) {
	sids := []string{
		"S-1-5-18",
		"S-1-1-0",
		"S-1-5-32-544",
		"S-1-5-21-3623811015-3361044348-30300820-1013",
		"S-1-5-21-3623811015-3361044348-30300820",
		"S-1-15-3-787448254-1207972858-3558633622-1059886964",
		"S-1-5-80-685333868-2237257676-1431965530-1907094206-2438021966",
	}

	for _, original := range sids {
		t.Run(original, func(t *testing.T) {
			raw, err := StringToBytes(original)
			require.NoError(t, err)

			result, err := BytesToString(raw)
			require.NoError(t, err)

			assert.Equal(t, original, result)
		})
	}
}

func TestSubAuthorities(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []uint32
		wantErr  bool
	}{
		{
			name:     "domain SID",
			input:    "S-1-5-21-3623811015-3361044348-30300820-1013",
			expected: []uint32{21, 3623811015, 3361044348, 30300820, 1013},
		},
		{
			name:     "single sub-authority",
			input:    "S-1-5-18",
			expected: []uint32{18},
		},
		{
			name:     "no sub-authorities",
			input:    "S-1-5",
			expected: []uint32{},
		},
		{
			name:    "malformed SID",
			input:   "S-1-5-garbage",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SubAuthorities(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedSid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDomainPrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "domain account SID",
			input:    "S-1-5-21-3623811015-3361044348-30300820-1013",
			expected: "S-1-5-21-3623811015-3361044348-30300820",
		},
		{
			name:     "builtin group SID",
			input:    "S-1-5-32-544",
			expected: "S-1-5-32",
		},
		{
			name:     "well-known SID with one sub-authority",
			input:    "S-1-5-18",
			expected: "S-1-5",
		},
		{
			name:     "authority only, unchanged",
			input:    "S-1-5",
			expected: "S-1-5",
		},
		{
			name:     "world authority, unchanged",
			input:    "S-1-0",
			expected: "S-1-0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DomainPrefix(tt.input))
		})
	}
}

func TestServiceNameToSid(t *testing.T) {
	tests := []struct {
		service  string
		expected string
	}{
		{
			service:  "msiserver",
			expected: "S-1-5-80-685333868-2237257676-1431965530-1907094206-2438021966",
		},
		{
			service:  "RtkAudioUniversalService",
			expected: "S-1-5-80-1164333642-2394958904-2405857294-3413162929-38257115",
		},
		{
			service:  "TrustedInstaller",
			expected: "S-1-5-80-956008885-3418522649-1831038044-1853292631-2271478464",
		},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			assert.Equal(t, tt.expected, ServiceNameToSid(tt.service))
		})
	}
}

func TestServiceNameToSid_CaseInsensitive(t *testing.T) {
	// The derivation uppercases the service name first, so every casing of
	// the same name yields the same SID.
	assert.Equal(t, ServiceNameToSid("msiserver"), ServiceNameToSid("MSISERVER"))
	assert.Equal(t, ServiceNameToSid("msiserver"), ServiceNameToSid("MsiServer"))
}

func BenchmarkStringToBytes(b *testing.B) {
	s := "S-1-5-21-3623811015-3361044348-30300820-1013"

	for b.Loop() {
		if _, err := StringToBytes(s); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBytesToString(b *testing.B) {
	raw, err := StringToBytes("S-1-5-21-3623811015-3361044348-30300820-1013")
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := BytesToString(raw); err != nil {
			b.Fatal(err)
		}
	}
}
