package errframe

import "fmt"

// Masked returns a copy where every byte whose governing class is unset is zeroed.
// A masked descriptor decodes to the same text as d
func (d Descriptor) Masked() Descriptor {
	masked := d
	for pos, class := range governingClass {
		if class != 0 && !d.Has(class) {
			masked.Data[pos] = 0
		}
	}
	return masked
}

// Options returns simulator tokens that encode the meaningful content of d.
// Values missing from the catalog are written back as raw "Data<N>=HH" tokens
func Options(d Descriptor) []string {
	options := make([]string, 0, len(classTable))
	for _, entry := range classTable {
		if !d.Has(entry.Class) {
			continue
		}
		switch entry.Class {
		case ClassLostArbitration:
			bit := d.Data[ByteLostArbitration]
			if bit <= 29 {
				options = append(options, fmt.Sprintf("LostArBit=%02d", bit))
			} else {
				options = append(options, rawOption(ByteLostArbitration, bit))
			}
		case ClassCounters:
			options = append(options,
				fmt.Sprintf("TxCount=%02X", d.Data[ByteTxCounter]),
				fmt.Sprintf("RxCount=%02X", d.Data[ByteRxCounter]))
		case ClassController:
			options = append(options, flagOptionNames(controllerTable, "CtrlUnspec", ByteController, d.Data[ByteController])...)
		case ClassProtocol:
			options = append(options, flagOptionNames(protocolTypeTable, "ProtUnspec", ByteProtocolType, d.Data[ByteProtocolType])...)
			options = append(options, enumOptionName(protocolLocationTable, ByteProtocolLoc, d.Data[ByteProtocolLoc]))
		case ClassTransceiver:
			options = append(options, enumOptionName(transceiverTable, ByteTransceiver, d.Data[ByteTransceiver]))
		default:
			options = append(options, entry.Option)
		}
	}
	if d.Data[ByteReserved] != 0 {
		options = append(options, rawOption(ByteReserved, d.Data[ByteReserved]))
	}
	return options
}

func rawOption(pos int, value uint8) string {
	return fmt.Sprintf("Data%d=%02X", pos, value)
}

func flagOptionNames(table []Field, unspec string, pos int, value uint8) []string {
	if value == Unspec {
		return []string{unspec}
	}
	if value&^knownBits(table) != 0 {
		return []string{rawOption(pos, value)}
	}
	names := make([]string, 0, len(table))
	for _, field := range table {
		if value&field.Value != 0 {
			names = append(names, field.Option)
		}
	}
	return names
}

func enumOptionName(table []Field, pos int, value uint8) string {
	name, ok := lookupOptionName(table, value)
	if !ok {
		return rawOption(pos, value)
	}
	return name
}
