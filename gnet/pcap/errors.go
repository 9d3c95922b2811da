package pcap

import "errors"

var (
	ErrInvalidMagicNumber  = errors.New("pcap: invalid magic number")
	ErrInvalidFileHeader   = errors.New("pcap: invalid file header")
	ErrInvalidPacketHeader = errors.New("pcap: invalid packet header")
	ErrTruncatedPacket     = errors.New("pcap: truncated packet data")
	ErrSnapLenExceeded     = errors.New("pcap: captured length exceeds snap length")
)
