package mssql

const hexChars = "0123456789ABCDEF"

// HexLiteral renders data as a T-SQL binary literal (0x...). Empty input
// renders as 0x, the empty binary value.
func HexLiteral(data []byte) string {
	out := make([]byte, 2+2*len(data))
	out[0], out[1] = '0', 'x'
	pos := 2
	for _, b := range data {
		out[pos] = hexChars[b>>4]
		out[pos+1] = hexChars[b&0x0F]
		pos += 2
	}
	return string(out)
}
