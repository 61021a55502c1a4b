package bits

// Unescape removes H.264 emulation prevention bytes: every 0x03 that
// follows two zero bytes in the output is dropped. After a drop the zero
// run starts over, so "00 00 03 03" keeps the second 0x03.
// The result never aliases src.
func Unescape(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	zeros := 0
	for _, b := range src {
		if b == 0x03 && zeros >= 2 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		dst = append(dst, b)
	}
	return dst
}
