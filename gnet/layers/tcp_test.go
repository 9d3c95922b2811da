package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTCPWithMSS(t *testing.T) {
	s := &state{buf: mustHex(t, "b5dd00500aaf604e0000000060c2102044b2000002040218"), d: NewDecoder()}
	tcp, err := s.decodeTCP(0, 24)
	require.NoError(t, err)

	assert.Equal(t, uint16(46557), tcp.SrcPort)
	assert.Equal(t, uint16(80), tcp.DstPort)
	assert.Equal(t, uint32(179265614), tcp.Seq)
	assert.Equal(t, 24, tcp.HeaderLength)
	assert.Equal(t, TCPFlags{CWR: true, ECE: true, SYN: true}, tcp.Flags)
	assert.True(t, tcp.Options.HasMSS)
	assert.Equal(t, uint16(536), tcp.Options.MSS)
	assert.False(t, tcp.HasData())
	assert.Equal(t, "46557 -> 80 seq 179265614 ack 0 flags [ces] win 4128 csum 17586 [mss:536] len 0", tcp.String())
}

func TestTCPNonceBit(t *testing.T) {
	s := &state{buf: mustHex(t, "0001000200000001000000025111ffff00000007"), d: NewDecoder()}
	tcp, err := s.decodeTCP(0, 20)
	require.NoError(t, err)
	assert.True(t, tcp.Flags.NS)
	assert.True(t, tcp.Flags.ACK)
	assert.True(t, tcp.Flags.FIN)
	assert.Equal(t, "[af]", tcp.Flags.String())
	assert.Equal(t, "1 -> 2 seq 1 ack 2 flags [af] win 65535 csum 0 urg 7 [.] len 0", tcp.String())
}

func TestTCPPayload(t *testing.T) {
	buf := mustHex(t, "0001000200000001000000025018ffff00000000"+"68656c6c6f")
	s := &state{buf: buf, d: NewDecoder()}
	tcp, err := s.decodeTCP(0, len(buf))
	require.NoError(t, err)
	assert.Equal(t, 5, tcp.DataLength)
	assert.Equal(t, []byte("hello"), tcp.Data)

	// declared length beyond the capture: data is clamped, length kept
	var diags []Diagnostic
	s = &state{buf: buf, d: NewDecoder(WithDiagnostics(func(d Diagnostic) { diags = append(diags, d) }))}
	tcp, err = s.decodeTCP(0, len(buf)+100)
	require.NoError(t, err)
	assert.Equal(t, 105, tcp.DataLength)
	assert.Equal(t, []byte("hello"), tcp.Data)
	require.Len(t, diags, 1)
	assert.Equal(t, LayerTypeTCP, diags[0].Layer)
}

func TestTCPOptions(t *testing.T) {
	const base = "0001000200000001000000020002ffff00000000"
	withOptions := func(words int, opts string) string {
		b := mustHex(t, base)
		b[12] = byte((5 + words) << 4)
		return string(b) + string(mustHex(t, opts))
	}

	for _, tc := range []struct {
		name  string
		words int
		opts  string
		want  TCPOptions
		str   string
	}{
		{
			name:  "mss wscale sackok",
			words: 3,
			opts:  "020405b4" + "010303" + "07" + "0402" + "0000",
			want:  TCPOptions{MSS: 1460, HasMSS: true, WindowScale: 7, HasWindowScale: true, SACKPermitted: true},
			str:   "[mss:1460 scale:7(128) sackOk]",
		},
		{
			name:  "timestamp",
			words: 3,
			opts:  "0101" + "080a0000000100000002",
			want:  TCPOptions{Timestamp: 1, TimestampEcho: 2, HasTimestamp: true},
			str:   "[timestamp:1 echo:2]",
		},
		{
			name:  "sack two blocks",
			words: 5,
			opts:  "0101" + "0512" + "0000000a00000014" + "0000001e00000028",
			want:  TCPOptions{SACK: []SACKBlock{{10, 20}, {30, 40}}},
			str:   "[sack:10-20,30-40]",
		},
		{
			name:  "experimental skipped",
			words: 1,
			opts:  "fe04abcd",
			want:  TCPOptions{},
			str:   "[.]",
		},
		{
			name:  "end of list stops parsing",
			words: 1,
			opts:  "00ffffff",
			want:  TCPOptions{},
			str:   "[.]",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := []byte(withOptions(tc.words, tc.opts))
			s := &state{buf: buf, d: NewDecoder()}
			tcp, err := s.decodeTCP(0, len(buf))
			require.NoError(t, err)
			assert.Equal(t, tc.want, tcp.Options)
			assert.Equal(t, tc.str, tcp.Options.String())
		})
	}

	for _, tc := range []struct {
		name  string
		words int
		opts  string
	}{
		{"sack bad length", 3, "050c" + "0000000a00000014" + "0000"},
		{"unknown kind", 1, "06040000"},
		{"mss bad length", 1, "02030000"},
		{"length past header", 1, "fe08abcd"},
		{"missing length", 1, "010101fe"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := []byte(withOptions(tc.words, tc.opts))
			s := &state{buf: buf, d: NewDecoder()}
			_, err := s.decodeTCP(0, len(buf))
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func TestTCPHeaderLengthTooSmall(t *testing.T) {
	s := &state{buf: mustHex(t, "0001000200000001000000024002ffff00000000"), d: NewDecoder()}
	_, err := s.decodeTCP(0, 20)
	assert.ErrorIs(t, err, ErrInvalidLength)
}
