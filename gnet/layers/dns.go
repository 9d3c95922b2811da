package layers

import (
	"fmt"
	"strings"
)

const (
	dnsHeaderLen = 12
	// dnsMaxPointers 限制压缩指针的跳转次数。
	dnsMaxPointers = 5
	// dnsMaxRecords 是单个段允许的最大记录数。
	dnsMaxRecords = 100
	dnsMaxLabel   = 63
)

type DNSType uint16

const (
	DNSTypeA     DNSType = 1
	DNSTypeNS    DNSType = 2
	DNSTypeCNAME DNSType = 5
	DNSTypeSOA   DNSType = 6
	DNSTypePTR   DNSType = 12
	DNSTypeMX    DNSType = 15
	DNSTypeTXT   DNSType = 16
	DNSTypeAAAA  DNSType = 28
)

var dnsTypeNames = map[DNSType]string{
	0:   "*",
	1:   "A",
	2:   "NS",
	3:   "MD",
	4:   "MF",
	5:   "CNAME",
	6:   "SOA",
	7:   "MB",
	8:   "MG",
	9:   "MR",
	10:  "NULL",
	11:  "WKS",
	12:  "PTR",
	13:  "HINFO",
	14:  "MINFO",
	15:  "MX",
	16:  "TXT",
	28:  "AAAA",
	252: "AXFR",
	253: "MAILB",
	254: "MAILA",
	255: "*",
}

func (t DNSType) String() string {
	if n, ok := dnsTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (%d)", uint16(t))
}

type DNSClass uint16

const DNSClassIN DNSClass = 1

var dnsClassNames = map[DNSClass]string{
	1:   "IN",
	2:   "CS",
	3:   "CH",
	4:   "HS",
	255: "*",
}

func (c DNSClass) String() string {
	if n, ok := dnsClassNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (%d)", uint16(c))
}

type DNSFlags struct {
	Response           bool
	Opcode             uint8
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Z                  uint8
	ResponseCode       uint8
}

func (f DNSFlags) String() string {
	kind := "query"
	if f.Response {
		kind = "response"
	}
	var bits []byte
	if f.Authoritative {
		bits = append(bits, "aa "...)
	}
	if f.Truncated {
		bits = append(bits, "tc "...)
	}
	if f.RecursionDesired {
		bits = append(bits, "rd "...)
	}
	if f.RecursionAvailable {
		bits = append(bits, "ra "...)
	}
	return fmt.Sprintf("%s opcode %d flags [%s] rcode %d", kind, f.Opcode, strings.TrimSpace(string(bits)), f.ResponseCode)
}

type DNSQuestion struct {
	Name  string
	Type  DNSType
	Class DNSClass
}

func (q DNSQuestion) String() string {
	return q.Name + " " + q.Type.String() + " " + q.Class.String()
}

// DNSResourceRecord is an answer, authority or additional record. Data is
// only resolved for A, NS and AAAA records of class IN.
type DNSResourceRecord struct {
	Name       string
	Type       DNSType
	Class      DNSClass
	TTL        uint32
	DataLength uint16
	Data       string
}

func (r DNSResourceRecord) String() string {
	s := fmt.Sprintf("%s %s %s ttl %d", r.Name, r.Type, r.Class, r.TTL)
	if r.Data != "" {
		s += " " + r.Data
	}
	return s
}

type DNS struct {
	BaseLayer
	ID          uint16
	Flags       DNSFlags
	QDCount     uint16
	ANCount     uint16
	NSCount     uint16
	ARCount     uint16
	Questions   []DNSQuestion
	Answers     []DNSResourceRecord
	Authorities []DNSResourceRecord
	Additionals []DNSResourceRecord
	// Malformed is set when a section count exceeded the safety ceiling;
	// that section and the ones after it were not decoded.
	Malformed string
}

func (*DNS) LayerType() LayerType { return LayerTypeDNS }

func (d *DNS) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DNS id %d %s qd %d an %d ns %d ar %d", d.ID, d.Flags, d.QDCount, d.ANCount, d.NSCount, d.ARCount)
	for _, q := range d.Questions {
		b.WriteString(" question ")
		b.WriteString(q.String())
	}
	for _, r := range d.Answers {
		b.WriteString(" answer ")
		b.WriteString(r.String())
	}
	for _, r := range d.Authorities {
		b.WriteString(" authority ")
		b.WriteString(r.String())
	}
	for _, r := range d.Additionals {
		b.WriteString(" additional ")
		b.WriteString(r.String())
	}
	if d.Malformed != "" {
		b.WriteString(" malformed: ")
		b.WriteString(d.Malformed)
	}
	return b.String()
}

// decodeDNS decodes the message in buf[off:off+n]. Compression pointers
// are offsets into that message.
func (s *state) decodeDNS(off, n int) (*DNS, error) {
	m := &state{buf: s.buf[off : off+n], d: s.d}
	if err := m.need(LayerTypeDNS, 0, dnsHeaderLen); err != nil {
		return nil, err
	}
	b2, b3 := m.u8(2), m.u8(3)
	d := &DNS{
		BaseLayer: BaseLayer{Contents: m.bytes(0, dnsHeaderLen)},
		ID:        m.u16(0),
		Flags: DNSFlags{
			Response:           b2&0x80 != 0,
			Opcode:             (b2 & 0x78) >> 3,
			Authoritative:      b2&0x04 != 0,
			Truncated:          b2&0x02 != 0,
			RecursionDesired:   b2&0x01 != 0,
			RecursionAvailable: b3&0x80 != 0,
			Z:                  (b3 & 0x70) >> 4,
			ResponseCode:       b3 & 0x0f,
		},
		QDCount: m.u16(4),
		ANCount: m.u16(6),
		NSCount: m.u16(8),
		ARCount: m.u16(10),
	}

	pos := dnsHeaderLen
	if d.QDCount > dnsMaxRecords {
		m.malformed(d, "question", d.QDCount, pos)
		s.done(d)
		return d, nil
	}
	for i := 0; i < int(d.QDCount); i++ {
		q, next, err := m.readDNSQuestion(pos)
		if err != nil {
			return nil, err
		}
		d.Questions = append(d.Questions, q)
		pos = next
	}

	sections := []struct {
		name  string
		count uint16
		dst   *[]DNSResourceRecord
	}{
		{"answer", d.ANCount, &d.Answers},
		{"authority", d.NSCount, &d.Authorities},
		{"additional", d.ARCount, &d.Additionals},
	}
	for _, sec := range sections {
		if sec.count > dnsMaxRecords {
			m.malformed(d, sec.name, sec.count, pos)
			break
		}
		for i := 0; i < int(sec.count); i++ {
			r, next, err := m.readDNSRecord(pos)
			if err != nil {
				return nil, err
			}
			*sec.dst = append(*sec.dst, r)
			pos = next
		}
	}
	s.done(d)
	return d, nil
}

func (s *state) malformed(d *DNS, section string, count uint16, pos int) {
	d.Malformed = fmt.Sprintf("too many RRs in %s section: %d", section, count)
	s.diag(LayerTypeDNS, pos, "%s", d.Malformed)
}

func (s *state) readDNSQuestion(off int) (DNSQuestion, int, error) {
	name, pos, err := s.readDNSName(off)
	if err != nil {
		return DNSQuestion{}, 0, err
	}
	if err := s.need(LayerTypeDNS, pos, 4); err != nil {
		return DNSQuestion{}, 0, err
	}
	return DNSQuestion{
		Name:  name,
		Type:  DNSType(s.u16(pos)),
		Class: DNSClass(s.u16(pos + 2)),
	}, pos + 4, nil
}

func (s *state) readDNSRecord(off int) (DNSResourceRecord, int, error) {
	var r DNSResourceRecord
	name, pos, err := s.readDNSName(off)
	if err != nil {
		return r, 0, err
	}
	if err := s.need(LayerTypeDNS, pos, 10); err != nil {
		return r, 0, err
	}
	r.Name = name
	r.Type = DNSType(s.u16(pos))
	r.Class = DNSClass(s.u16(pos + 2))
	r.TTL = s.u32(pos + 4)
	r.DataLength = s.u16(pos + 8)
	rdata := pos + 10
	if err := s.need(LayerTypeDNS, rdata, int(r.DataLength)); err != nil {
		return r, 0, err
	}
	if r.Class == DNSClassIN {
		switch {
		case r.Type == DNSTypeA && r.DataLength == 4:
			r.Data = DecodeIPv4Address(s.buf, rdata).String()
		case r.Type == DNSTypeAAAA && r.DataLength == 16:
			r.Data = DecodeIPv6Address(s.buf, rdata).String()
		case r.Type == DNSTypeNS:
			ns, _, err := s.readDNSName(rdata)
			if err != nil {
				return r, 0, err
			}
			r.Data = ns
		}
	}
	return r, rdata + int(r.DataLength), nil
}

// readDNSName returns the dotted name at off and the offset just past it
// in the original (uncompressed) position.
func (s *state) readDNSName(off int) (string, int, error) {
	var (
		labels []string
		pos    = off
		next   = -1
		hops   int
	)
	for {
		if err := s.need(LayerTypeDNS, pos, 1); err != nil {
			return "", 0, err
		}
		l := int(s.u8(pos))
		switch {
		case l&0xc0 == 0xc0:
			if err := s.need(LayerTypeDNS, pos, 2); err != nil {
				return "", 0, err
			}
			if hops == dnsMaxPointers {
				return "", 0, fmt.Errorf("layers: dns name at offset %d: %w", off, ErrDNSPointerLimit)
			}
			hops++
			if next < 0 {
				next = pos + 2
			}
			pos = int(s.u16(pos) & 0x3fff)
		case l == 0:
			if next < 0 {
				next = pos + 1
			}
			if len(labels) == 0 {
				return "<root>", next, nil
			}
			return strings.Join(labels, "."), next, nil
		case l > dnsMaxLabel:
			return "", 0, fmt.Errorf("layers: dns label length %d at offset %d: %w", l, pos, ErrDNSLabelTooLong)
		default:
			if err := s.need(LayerTypeDNS, pos+1, l); err != nil {
				return "", 0, err
			}
			labels = append(labels, string(s.buf[pos+1:pos+1+l]))
			pos += 1 + l
		}
	}
}
