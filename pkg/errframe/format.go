package errframe

import (
	"fmt"
	"strings"

	canerr "github.com/samsamfire/gocanerr"
)

// Format renders an error frame on one line :
//
//	0x06A [8] 09 00 80 00 AA 00 00 00  ERR=LostArBit09,NoAck,BusOff,Prot(Type(TX),Loc(Unspec))
func Format(d Descriptor) string {
	var b strings.Builder
	id := uint32(d.Class) & canerr.CanErrMask
	if d.Extended {
		fmt.Fprintf(&b, "0x%08X [%d] ", id, canerr.CanErrDlc)
	} else {
		fmt.Fprintf(&b, "0x%03X [%d] ", id, canerr.CanErrDlc)
	}
	for _, value := range d.Data {
		fmt.Fprintf(&b, "%02X ", value)
	}
	b.WriteString(" ERR=")
	b.WriteString(Decode(d).String())
	return b.String()
}

// FormatBytes renders payload bytes as space separated hex
func FormatBytes(data []byte) string {
	hex := make([]string, len(data))
	for i, value := range data {
		hex[i] = fmt.Sprintf("%02X", value)
	}
	return strings.Join(hex, " ")
}

// Binary renders a 32 bit value most significant bit first
func Binary(value uint32) string {
	return fmt.Sprintf("%032b", value)
}
