package layers

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	gl "github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func udpSegment(sport, dport uint16, payload []byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint16(b[0:], sport)
	binary.BigEndian.PutUint16(b[2:], dport)
	binary.BigEndian.PutUint16(b[4:], uint16(8+len(payload)))
	return append(b, payload...)
}

func ipv4Packet(proto IPProtocol, payload []byte) []byte {
	b := make([]byte, 20, 20+len(payload))
	b[0] = 0x45
	binary.BigEndian.PutUint16(b[2:], uint16(20+len(payload)))
	b[8] = 64
	b[9] = byte(proto)
	copy(b[12:], []byte{10, 0, 0, 1})
	copy(b[16:], []byte{10, 0, 0, 2})
	return append(b, payload...)
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func TestDecodeMatchesGopacket(t *testing.T) {
	eth := &gl.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: gl.EthernetTypeIPv4,
	}
	ip := &gl.IPv4{
		Version:  4,
		TTL:      64,
		Id:       0x1234,
		Flags:    gl.IPv4DontFragment,
		Protocol: gl.IPProtocolTCP,
		SrcIP:    net.IP{192, 168, 1, 1},
		DstIP:    net.IP{192, 168, 1, 2},
	}
	tcp := &gl.TCP{
		SrcPort: 40000,
		DstPort: 80,
		Seq:     1000,
		SYN:     true,
		ECE:     true,
		Window:  64240,
		Options: []gl.TCPOption{
			{OptionType: gl.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xb4}},
			{OptionType: gl.TCPOptionKindSACKPermitted, OptionLength: 2},
			{OptionType: gl.TCPOptionKindWindowScale, OptionLength: 3, OptionData: []byte{7}},
		},
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	payload := []byte("GET / HTTP/1.1\r\n\r\n")
	data := serialize(t, eth, ip, tcp, gopacket.Payload(payload))

	ref := gopacket.NewPacket(data, gl.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, ref.ErrorLayer())
	refIP := ref.Layer(gl.LayerTypeIPv4).(*gl.IPv4)
	refTCP := ref.Layer(gl.LayerTypeTCP).(*gl.TCP)

	p, err := Parse(LinkTypeEthernet, header(data), data)
	require.NoError(t, err)
	require.NotNil(t, p.Ether)
	require.NotNil(t, p.IPv4)
	require.NotNil(t, p.TCP)

	assert.Equal(t, eth.SrcMAC.String(), p.Ether.Src.String())
	assert.Equal(t, eth.DstMAC.String(), p.Ether.Dst.String())
	assert.Equal(t, refIP.Length, p.IPv4.TotalLength)
	assert.Equal(t, int(refIP.IHL)*4, p.IPv4.HeaderLength)
	assert.Equal(t, refIP.Checksum, p.IPv4.Checksum)
	assert.Equal(t, refIP.Id, p.IPv4.ID)
	assert.True(t, p.IPv4.Flags.DontFragment)
	assert.Equal(t, refIP.SrcIP.String(), p.IPv4.Src.String())

	assert.Equal(t, uint16(refTCP.SrcPort), p.TCP.SrcPort)
	assert.Equal(t, uint16(refTCP.DstPort), p.TCP.DstPort)
	assert.Equal(t, refTCP.Seq, p.TCP.Seq)
	assert.Equal(t, int(refTCP.DataOffset)*4, p.TCP.HeaderLength)
	assert.Equal(t, refTCP.Checksum, p.TCP.Checksum)
	assert.Equal(t, TCPFlags{SYN: true, ECE: true}, p.TCP.Flags)
	assert.Equal(t, uint16(1460), p.TCP.Options.MSS)
	assert.True(t, p.TCP.Options.SACKPermitted)
	assert.Equal(t, uint8(7), p.TCP.Options.WindowScale)
	assert.Equal(t, len(payload), p.TCP.DataLength)
	assert.Equal(t, refTCP.Payload, p.TCP.Data)
	assert.Equal(t, payload, p.Payload())

	require.Len(t, p.Layers, 3)
	assert.IsType(t, &Ethernet{}, p.Layers[0])
	assert.IsType(t, &IPv4{}, p.Layers[1])
	assert.Same(t, p.TCP, p.Final)
}

func TestDecodeIPv6TCPMatchesGopacket(t *testing.T) {
	ip := &gl.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: gl.IPProtocolTCP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	tcp := &gl.TCP{SrcPort: 5555, DstPort: 443, Seq: 7, Ack: 9, ACK: true, PSH: true, Window: 512}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, ip, tcp, gopacket.Payload("abc"))

	f, err := Decode(LinkTypeRaw, header(data), data)
	require.NoError(t, err)
	v6, ok := f.Payload.(*IPv6)
	require.True(t, ok)
	assert.Equal(t, uint16(23), v6.PayloadLength)
	assert.Equal(t, "2001:db8::1", v6.SourceAddr().String())

	gotIP, seg, ok := f.TCP()
	require.True(t, ok)
	assert.Same(t, v6, gotIP)
	assert.Equal(t, []byte("abc"), seg.Data)
	assert.Equal(t, TCPFlags{ACK: true, PSH: true}, seg.Flags)
}

func TestTruncatedFramesNeverPanic(t *testing.T) {
	ip := &gl.IPv4{Version: 4, TTL: 64, Protocol: gl.IPProtocolTCP, SrcIP: net.IP{1, 1, 1, 1}, DstIP: net.IP{2, 2, 2, 2}}
	tcp := &gl.TCP{SrcPort: 1, DstPort: 2, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	data := serialize(t,
		&gl.Ethernet{SrcMAC: net.HardwareAddr{1, 2, 3, 4, 5, 6}, DstMAC: net.HardwareAddr{6, 5, 4, 3, 2, 1}, EthernetType: gl.EthernetTypeIPv4},
		ip,
		tcp,
		gopacket.Payload("payload"),
	)
	const headers = 14 + 20 + 20
	for n := 0; n < headers; n++ {
		_, err := Decode(LinkTypeEthernet, header(data[:n]), data[:n])
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", n)
	}
	for n := headers; n <= len(data); n++ {
		f, err := Decode(LinkTypeEthernet, header(data[:n]), data[:n])
		require.NoError(t, err, "cut at %d", n)
		_, seg, ok := f.TCP()
		require.True(t, ok)
		assert.Equal(t, len("payload"), seg.DataLength)
		assert.Len(t, seg.Data, min(n-headers, len("payload")))
	}
}

func TestPayloadCopySemantics(t *testing.T) {
	buf := ipv4Packet(IPProtocolUDP, udpSegment(1000, 2000, []byte("abcd")))

	copied, err := Decode(LinkTypeRaw, header(buf), buf)
	require.NoError(t, err)
	aliased, err := NewDecoder(WithNoCopy()).Decode(LinkTypeRaw, header(buf), buf)
	require.NoError(t, err)

	buf[len(buf)-1] = 'z'
	assert.Equal(t, []byte("abcd"), copied.Payload.(*IPv4).Payload.(*UDP).Data)
	assert.Equal(t, []byte("abcz"), aliased.Payload.(*IPv4).Payload.(*UDP).Data)
}

func TestLayerHookOrder(t *testing.T) {
	buf := ipv4Packet(IPProtocolUDP, udpSegment(1000, 2000, []byte("x")))
	var seen []LayerType
	d := NewDecoder(WithLayerHook(func(l Layer) { seen = append(seen, l.LayerType()) }))
	_, err := d.Decode(LinkTypeRaw, header(buf), buf)
	require.NoError(t, err)
	assert.Equal(t, []LayerType{LayerTypeUDP, LayerTypeIPv4}, seen)

	seen = nil
	p, err := d.Parse(LinkTypeRaw, header(buf), buf)
	require.NoError(t, err)
	assert.Equal(t, []LayerType{LayerTypeUDP, LayerTypeIPv4}, seen)
	require.Len(t, p.Layers, 2)
	assert.Equal(t, LayerTypeIPv4, p.Layers[0].LayerType())
}

func TestLayerTypeString(t *testing.T) {
	assert.Equal(t, "HeaderExtension", LayerTypeHeaderExtension.String())
	assert.Equal(t, "LayerType(99)", LayerType(99).String())
	assert.Equal(t, "HeaderExtension", IPProtocolRouting.String())
	assert.Equal(t, "protocol 132", IPProtocol(132).String())
}
