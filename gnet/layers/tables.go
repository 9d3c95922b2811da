package layers

// 地址格式化用的预计算表，避免在热路径上调用 fmt。
var (
	hexByte      [256]string // "00".."ff"
	hexByteNoPad [256]string // "0".."ff"
	decByte      [256]string // "0".."255"
)

func init() {
	const digits = "0123456789abcdef"
	for i := 0; i < 256; i++ {
		hexByte[i] = string([]byte{digits[i>>4], digits[i&0x0f]})
		if i < 16 {
			hexByteNoPad[i] = hexByte[i][1:]
		} else {
			hexByteNoPad[i] = hexByte[i]
		}
		decByte[i] = decString(uint32(i))
	}
}

func decString(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
