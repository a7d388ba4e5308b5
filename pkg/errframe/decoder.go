package errframe

// Decode describes every error class set in the descriptor, in catalog order.
// Decoding never fails : unknown values are reported as "Unknown" or "Unspec"
func Decode(d Descriptor) Description {
	description := make(Description, 0, len(classTable))
	for _, entry := range classTable {
		if !d.Has(entry.Class) {
			continue
		}
		description = append(description, decodeClass(entry, d.Data))
	}
	return description
}

func decodeClass(entry ClassEntry, data [8]byte) Clause {
	switch entry.Class {
	case ClassLostArbitration:
		return LostArbitration{Bit: data[ByteLostArbitration]}
	case ClassCounters:
		return Counters{TX: data[ByteTxCounter], RX: data[ByteRxCounter]}
	case ClassController:
		return Controller{Status: decodeFlags(controllerTable, data[ByteController])}
	case ClassProtocol:
		return Protocol{
			Types:    decodeFlags(protocolTypeTable, data[ByteProtocolType]),
			Location: lookupLabel(protocolLocationTable, data[ByteProtocolLoc]),
		}
	case ClassTransceiver:
		return Transceiver{Status: lookupLabel(transceiverTable, data[ByteTransceiver])}
	default:
		return Flag{class: entry.Class, Name: entry.Option}
	}
}

// A byte with no known flag decodes to "Unspec", never to an empty list
func decodeFlags(table []Field, value uint8) []string {
	flags := setFlags(table, value)
	if len(flags) == 0 {
		return []string{LabelUnspec}
	}
	return flags
}
