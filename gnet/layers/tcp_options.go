package layers

import (
	"fmt"
	"strings"
)

const (
	TCPOptionEnd           uint8 = 0
	TCPOptionNOP           uint8 = 1
	TCPOptionMSS           uint8 = 2
	TCPOptionWindowScale   uint8 = 3
	TCPOptionSACKPermitted uint8 = 4
	TCPOptionSACK          uint8 = 5
	TCPOptionTimestamp     uint8 = 8
	TCPOptionExperiment1   uint8 = 254
	TCPOptionExperiment2   uint8 = 255
)

type SACKBlock struct {
	Left, Right uint32
}

// TCPOptions holds the options the decoder understands. Presence of the
// scalar options is tracked by the Has* fields.
type TCPOptions struct {
	MSS            uint16
	HasMSS         bool
	WindowScale    uint8
	HasWindowScale bool
	SACKPermitted  bool
	SACK           []SACKBlock
	Timestamp      uint32
	TimestampEcho  uint32
	HasTimestamp   bool
}

func (o TCPOptions) String() string {
	var parts []string
	if o.HasMSS {
		parts = append(parts, "mss:"+decString(uint32(o.MSS)))
	}
	if o.HasWindowScale {
		parts = append(parts, fmt.Sprintf("scale:%d(%d)", o.WindowScale, uint32(1)<<min(o.WindowScale, 31)))
	}
	if o.SACKPermitted {
		parts = append(parts, "sackOk")
	}
	if len(o.SACK) > 0 {
		blocks := make([]string, len(o.SACK))
		for i, b := range o.SACK {
			blocks[i] = decString(b.Left) + "-" + decString(b.Right)
		}
		parts = append(parts, "sack:"+strings.Join(blocks, ","))
	}
	if o.HasTimestamp {
		parts = append(parts, "timestamp:"+decString(o.Timestamp)+" echo:"+decString(o.TimestampEcho))
	}
	if len(parts) == 0 {
		return "[.]"
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func optionError(kind uint8, off int, format string, args ...any) error {
	return fmt.Errorf("layers: tcp option %d at offset %d: %s: %w", kind, off, fmt.Sprintf(format, args...), ErrInvalidOption)
}

// decodeTCPOptions parses the TLV stream in buf[off:end].
func (s *state) decodeTCPOptions(off, end int) (TCPOptions, error) {
	var o TCPOptions
	for pos := off; pos < end; {
		kind := s.u8(pos)
		switch kind {
		case TCPOptionEnd:
			return o, nil
		case TCPOptionNOP:
			pos++
			continue
		}
		if pos+1 >= end {
			return o, optionError(kind, pos, "missing length")
		}
		length := int(s.u8(pos + 1))
		if length < 2 || pos+length > end {
			return o, optionError(kind, pos, "length %d", length)
		}
		switch kind {
		case TCPOptionMSS:
			if length != 4 {
				return o, optionError(kind, pos, "length %d", length)
			}
			o.MSS, o.HasMSS = s.u16(pos+2), true
		case TCPOptionWindowScale:
			if length != 3 {
				return o, optionError(kind, pos, "length %d", length)
			}
			o.WindowScale, o.HasWindowScale = s.u8(pos+2), true
		case TCPOptionSACKPermitted:
			if length != 2 {
				return o, optionError(kind, pos, "length %d", length)
			}
			o.SACKPermitted = true
		case TCPOptionSACK:
			switch length {
			case 10, 18, 26, 34:
			default:
				return o, optionError(kind, pos, "sack length %d", length)
			}
			for p := pos + 2; p < pos+length; p += 8 {
				o.SACK = append(o.SACK, SACKBlock{Left: s.u32(p), Right: s.u32(p + 4)})
			}
		case TCPOptionTimestamp:
			if length != 10 {
				return o, optionError(kind, pos, "length %d", length)
			}
			o.Timestamp, o.TimestampEcho, o.HasTimestamp = s.u32(pos+2), s.u32(pos+6), true
		case TCPOptionExperiment1, TCPOptionExperiment2:
		default:
			return o, optionError(kind, pos, "unsupported kind")
		}
		pos += length
	}
	return o, nil
}
