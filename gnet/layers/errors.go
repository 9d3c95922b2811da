package layers

import "errors"

var (
	ErrTruncated           = errors.New("layers: packet truncated")
	ErrUnsupportedLinkType = errors.New("layers: unsupported link type")
	ErrNotEtherType        = errors.New("layers: 802.3 length field is not an ethertype")
	ErrUnsupportedSAP      = errors.New("layers: unsupported llc dsap/ssap")
	ErrUnsupportedFamily   = errors.New("layers: unsupported null protocol family")
	ErrUnsupportedARP      = errors.New("layers: unsupported arp address lengths")
	ErrUnknownProtocol     = errors.New("layers: unknown ip protocol")
	ErrTrailingBytes       = errors.New("layers: no next header followed by trailing bytes")
	ErrInvalidLength       = errors.New("layers: invalid header length")
	ErrInvalidOption       = errors.New("layers: invalid tcp option")
	ErrDNSLabelTooLong     = errors.New("layers: dns label longer than 63 bytes")
	ErrDNSPointerLimit     = errors.New("layers: too many dns compression pointers")
)
