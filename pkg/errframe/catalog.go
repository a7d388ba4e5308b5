package errframe

import "strings"

// ErrorClass is the error class mask carried in the identifier of an error frame.
// See linux/can/error.h
type ErrorClass uint32

// Error classes
const (
	ClassTxTimeout       ErrorClass = 0x00000001 // TX timeout (by netdevice driver)
	ClassLostArbitration ErrorClass = 0x00000002 // lost arbitration / data[0]
	ClassController      ErrorClass = 0x00000004 // controller problems / data[1]
	ClassProtocol        ErrorClass = 0x00000008 // protocol violations / data[2..3]
	ClassTransceiver     ErrorClass = 0x00000010 // transceiver status / data[4]
	ClassNoAck           ErrorClass = 0x00000020 // received no ACK on transmission
	ClassBusOff          ErrorClass = 0x00000040 // bus off
	ClassBusError        ErrorClass = 0x00000080 // bus error (may flood!)
	ClassRestarted       ErrorClass = 0x00000100 // controller restarted
	ClassCounters        ErrorClass = 0x00000200 // TX error counter / data[6], RX error counter / data[7]
)

// Payload byte positions
const (
	ByteLostArbitration = 0
	ByteController      = 1
	ByteProtocolType    = 2
	ByteProtocolLoc     = 3
	ByteTransceiver     = 4
	ByteReserved        = 5
	ByteTxCounter       = 6
	ByteRxCounter       = 7
)

// Unspecified value shared by all sub-bitfield and enumeration bytes
const Unspec uint8 = 0x00

// Controller status, data[1]
const (
	CtrlRxOverflow uint8 = 0x01
	CtrlTxOverflow uint8 = 0x02
	CtrlRxWarning  uint8 = 0x04
	CtrlTxWarning  uint8 = 0x08
	CtrlRxPassive  uint8 = 0x10
	CtrlTxPassive  uint8 = 0x20
	CtrlActive     uint8 = 0x40
)

// Protocol error type, data[2]
const (
	ProtBit      uint8 = 0x01 // single bit error
	ProtForm     uint8 = 0x02 // frame format error
	ProtStuff    uint8 = 0x04 // bit stuffing error
	ProtBit0     uint8 = 0x08 // unable to send dominant bit
	ProtBit1     uint8 = 0x10 // unable to send recessive bit
	ProtOverload uint8 = 0x20 // bus overload
	ProtActive   uint8 = 0x40 // active error announcement
	ProtTx       uint8 = 0x80 // error occurred on transmission
)

// Protocol error location, data[3]
const (
	LocSof    uint8 = 0x03 // start of frame
	LocId2821 uint8 = 0x02 // ID bits 28 - 21 (SFF: 10 - 3)
	LocId2018 uint8 = 0x06 // ID bits 20 - 18 (SFF: 2 - 0)
	LocSrtr   uint8 = 0x04 // substitute RTR (SFF: RTR)
	LocIde    uint8 = 0x05 // identifier extension
	LocId1713 uint8 = 0x07 // ID bits 17-13
	LocId1205 uint8 = 0x0F // ID bits 12-5
	LocId0400 uint8 = 0x0E // ID bits 4-0
	LocRtr    uint8 = 0x0C // RTR
	LocRes1   uint8 = 0x0D // reserved bit 1
	LocRes0   uint8 = 0x09 // reserved bit 0
	LocDlc    uint8 = 0x0B // data length code
	LocData   uint8 = 0x0A // data section
	LocCrcSeq uint8 = 0x08 // CRC sequence
	LocCrcDel uint8 = 0x18 // CRC delimiter
	LocAck    uint8 = 0x19 // ACK slot
	LocAckDel uint8 = 0x1B // ACK delimiter
	LocEof    uint8 = 0x1A // end of frame
	LocInterm uint8 = 0x12 // intermission
)

// Transceiver status, data[4]
//
//	CANH CANL
const (
	TrxCanhNoWire      uint8 = 0x04 // 0000 0100
	TrxCanhShortToBat  uint8 = 0x05 // 0000 0101
	TrxCanhShortToVcc  uint8 = 0x06 // 0000 0110
	TrxCanhShortToGnd  uint8 = 0x07 // 0000 0111
	TrxCanlNoWire      uint8 = 0x40 // 0100 0000
	TrxCanlShortToBat  uint8 = 0x50 // 0101 0000
	TrxCanlShortToVcc  uint8 = 0x60 // 0110 0000
	TrxCanlShortToGnd  uint8 = 0x70 // 0111 0000
	TrxCanlShortToCanh uint8 = 0x80 // 1000 0000
)

// Label used when a sub-bitfield byte has no known flag set
const LabelUnspec = "Unspec"

// Label used when an enumeration byte matches no known value
const LabelUnknown = "Unknown"

// A named value inside a payload byte.
// Option is the simulator spelling, Label the decoder spelling
type Field struct {
	Option string
	Label  string
	Value  uint8
	Help   string
}

// A top level error class, in decoding order
type ClassEntry struct {
	Class  ErrorClass
	Option string // simulator option, empty if the class needs an argument or sub-field
	Ignore string // monitor option removing the class from the error filter
	Help   string
}

var classTable = []ClassEntry{
	{Class: ClassTxTimeout, Option: "TxTimeout", Ignore: "IgnoreTxTimeout", Help: "TX timeout by netdevice driver"},
	{Class: ClassLostArbitration, Ignore: "IgnoreLostArbit", Help: "lost arbitration"},
	{Class: ClassNoAck, Option: "NoAck", Ignore: "IgnoreNoAck", Help: "received no ACK on transmission"},
	{Class: ClassBusOff, Option: "BusOff", Ignore: "IgnoreBusOff", Help: "bus off"},
	{Class: ClassBusError, Option: "BusError", Ignore: "IgnoreBusError", Help: "bus error, may flood!"},
	{Class: ClassRestarted, Option: "Restarted", Ignore: "IgnoreRestarted", Help: "controller restarted"},
	{Class: ClassCounters, Ignore: "IgnoreCounters", Help: "TX and RX error counters"},
	{Class: ClassController, Ignore: "IgnoreController", Help: "controller problems"},
	{Class: ClassProtocol, Ignore: "IgnoreProtocol", Help: "protocol violations"},
	{Class: ClassTransceiver, Ignore: "IgnoreTransceiver", Help: "transceiver status"},
}

var controllerTable = []Field{
	{Option: "OverflowRX", Label: "OverflowRX", Value: CtrlRxOverflow, Help: "RX buffer overflow"},
	{Option: "OverflowTX", Label: "OverflowTX", Value: CtrlTxOverflow, Help: "TX buffer overflow"},
	{Option: "WarningRX", Label: "WarningRX", Value: CtrlRxWarning, Help: "reached warning level for RX errors"},
	{Option: "WarningTX", Label: "WarningTX", Value: CtrlTxWarning, Help: "reached warning level for TX errors"},
	{Option: "PassiveRX", Label: "PassiveRX", Value: CtrlRxPassive, Help: "reached error passive status RX, errors > 127"},
	{Option: "PassiveTX", Label: "PassiveTX", Value: CtrlTxPassive, Help: "reached error passive status TX, errors > 127"},
	{Option: "Active", Label: "Active", Value: CtrlActive, Help: "recovered to error active state"},
}

var protocolTypeTable = []Field{
	{Option: "SingleBit", Label: "SingleBit", Value: ProtBit, Help: "single bit error"},
	{Option: "FrameFormat", Label: "FrameFormat", Value: ProtForm, Help: "frame format error"},
	{Option: "BitStuffing", Label: "BitStuffing", Value: ProtStuff, Help: "bit stuffing error"},
	{Option: "Bit0", Label: "Bit0", Value: ProtBit0, Help: "unable to send dominant bit"},
	{Option: "Bit1", Label: "Bit1", Value: ProtBit1, Help: "unable to send recessive bit"},
	{Option: "BusOverload", Label: "BusOverload", Value: ProtOverload, Help: "bus overload"},
	{Option: "ActiveAnnouncement", Label: "ActiveAnnouncement", Value: ProtActive, Help: "active error announcement"},
	{Option: "TX", Label: "TX", Value: ProtTx, Help: "error occurred on transmission"},
}

var protocolLocationTable = []Field{
	{Option: "LocUnspec", Label: LabelUnspec, Value: Unspec, Help: "unspecified location"},
	{Option: "SOF", Label: "SOF", Value: LocSof, Help: "start of frame"},
	{Option: "ID28_21", Label: "ID28_21", Value: LocId2821, Help: "ID bits 21..28, SFF: 3..10"},
	{Option: "ID20_18", Label: "ID20_18", Value: LocId2018, Help: "ID bits 18..20, SFF: 0..2"},
	{Option: "SRTR", Label: "SRTR", Value: LocSrtr, Help: "substitute RTR, SFF: RTR"},
	{Option: "IDE", Label: "IDE", Value: LocIde, Help: "identifier extension"},
	{Option: "ID17_13", Label: "ID17_13", Value: LocId1713, Help: "ID bits 13..17"},
	{Option: "ID12_05", Label: "ID12_05", Value: LocId1205, Help: "ID bits 5..12"},
	{Option: "ID04_00", Label: "ID04_00", Value: LocId0400, Help: "ID bits 0..4"},
	{Option: "RTR", Label: "RTR", Value: LocRtr, Help: "RTR"},
	{Option: "RES1", Label: "RES1", Value: LocRes1, Help: "reserved bit 1"},
	{Option: "RES0", Label: "RES0", Value: LocRes0, Help: "reserved bit 0"},
	{Option: "DLC", Label: "DLC", Value: LocDlc, Help: "data length code"},
	{Option: "DATA", Label: "DATA", Value: LocData, Help: "data section"},
	{Option: "CRC_SEQ", Label: "CRC_SEQ", Value: LocCrcSeq, Help: "CRC sequence"},
	{Option: "CRC_DEL", Label: "CRC_DEL", Value: LocCrcDel, Help: "CRC delimiter"},
	{Option: "ACK", Label: "ACK", Value: LocAck, Help: "ACK slot"},
	{Option: "ACK_DEL", Label: "ACK_DEL", Value: LocAckDel, Help: "ACK delimiter"},
	{Option: "EOF", Label: "EOF", Value: LocEof, Help: "end of frame"},
	{Option: "INTERM", Label: "INTERM", Value: LocInterm, Help: "intermission"},
}

var transceiverTable = []Field{
	{Option: "TransUnspec", Label: LabelUnspec, Value: Unspec, Help: "CANH CANL 0000 0000"},
	{Option: "CanHiNoWire", Label: "CanHiNoWire", Value: TrxCanhNoWire, Help: "CANH CANL 0000 0100"},
	{Option: "CanHiShortToBAT", Label: "CanHiShortToBAT", Value: TrxCanhShortToBat, Help: "CANH CANL 0000 0101"},
	{Option: "CanHiShortToVCC", Label: "CanHiShortToVCC", Value: TrxCanhShortToVcc, Help: "CANH CANL 0000 0110"},
	{Option: "CanHiShortToGND", Label: "CanHiShortToGND", Value: TrxCanhShortToGnd, Help: "CANH CANL 0000 0111"},
	{Option: "CanLoNoWire", Label: "CanLoNoWire", Value: TrxCanlNoWire, Help: "CANH CANL 0100 0000"},
	{Option: "CanLoShortToBAT", Label: "CanLoShortToBAT", Value: TrxCanlShortToBat, Help: "CANH CANL 0101 0000"},
	{Option: "CanLoShortToVCC", Label: "CanLoShortToVCC", Value: TrxCanlShortToVcc, Help: "CANH CANL 0110 0000"},
	{Option: "CanLoShortToGND", Label: "CanLoShortToGND", Value: TrxCanlShortToGnd, Help: "CANH CANL 0111 0000"},
	{Option: "CanLoShortToCanHi", Label: "CanLoShortToCanHi", Value: TrxCanlShortToCanh, Help: "CANH CANL 1000 0000"},
}

// How an option writes into the descriptor
type optionKind uint8

const (
	kindClass    optionKind = iota // class bit only
	kindFlag                       // class bit + OR into a sub-bitfield byte
	kindEnum                       // class bit + assign an enumeration byte
	kindDecimal                    // class bit + two decimal digits argument
	kindHex                        // class bit + two hex digits argument
)

// Where an option lands in the descriptor
type location struct {
	kind  optionKind
	class ErrorClass
	pos   int
	value uint8
}

// Options that carry an argument, keyed by their lower case name
var argumentOptions = map[string]location{
	"lostarbit": {kind: kindDecimal, class: ClassLostArbitration, pos: ByteLostArbitration},
	"txcount":   {kind: kindHex, class: ClassCounters, pos: ByteTxCounter},
	"rxcount":   {kind: kindHex, class: ClassCounters, pos: ByteRxCounter},
}

// Sub-bitfield bytes accumulate, every other byte is assigned once
var bitfieldBytes = [8]bool{ByteController: true, ByteProtocolType: true}

// Class governing each payload byte, 0 if none
var governingClass = [8]ErrorClass{
	ByteLostArbitration: ClassLostArbitration,
	ByteController:      ClassController,
	ByteProtocolType:    ClassProtocol,
	ByteProtocolLoc:     ClassProtocol,
	ByteTransceiver:     ClassTransceiver,
	ByteTxCounter:       ClassCounters,
	ByteRxCounter:       ClassCounters,
}

// Flag options, keyed by their lower case name. Built from the tables above
var flagOptions = buildOptions()

func buildOptions() map[string]location {
	options := make(map[string]location)
	for _, entry := range classTable {
		if entry.Option != "" {
			options[strings.ToLower(entry.Option)] = location{kind: kindClass, class: entry.Class}
		}
	}
	for _, field := range controllerTable {
		options[strings.ToLower(field.Option)] = location{kind: kindFlag, class: ClassController, pos: ByteController, value: field.Value}
	}
	options["ctrlunspec"] = location{kind: kindFlag, class: ClassController, pos: ByteController, value: Unspec}
	for _, field := range protocolTypeTable {
		options[strings.ToLower(field.Option)] = location{kind: kindFlag, class: ClassProtocol, pos: ByteProtocolType, value: field.Value}
	}
	options["protunspec"] = location{kind: kindFlag, class: ClassProtocol, pos: ByteProtocolType, value: Unspec}
	for _, field := range protocolLocationTable {
		options[strings.ToLower(field.Option)] = location{kind: kindEnum, class: ClassProtocol, pos: ByteProtocolLoc, value: field.Value}
	}
	for _, field := range transceiverTable {
		options[strings.ToLower(field.Option)] = location{kind: kindEnum, class: ClassTransceiver, pos: ByteTransceiver, value: field.Value}
	}
	return options
}

// Classes returns the error classes in decoding order
func Classes() []ClassEntry {
	classes := make([]ClassEntry, len(classTable))
	copy(classes, classTable)
	return classes
}

// ControllerFlags returns the controller status flags of data[1]
func ControllerFlags() []Field { return append([]Field(nil), controllerTable...) }

// ProtocolTypes returns the protocol error type flags of data[2]
func ProtocolTypes() []Field { return append([]Field(nil), protocolTypeTable...) }

// ProtocolLocations returns the protocol error locations of data[3]
func ProtocolLocations() []Field { return append([]Field(nil), protocolLocationTable...) }

// TransceiverStates returns the transceiver states of data[4]
func TransceiverStates() []Field { return append([]Field(nil), transceiverTable...) }

// LookupIgnore returns the class removed by a monitor "Ignore" option.
// Matching is case insensitive
func LookupIgnore(name string) (ErrorClass, bool) {
	for _, entry := range classTable {
		if strings.EqualFold(entry.Ignore, name) {
			return entry.Class, true
		}
	}
	// Misspelling kept for older scripts
	if strings.EqualFold(name, "IgnoreTransveiver") {
		return ClassTransceiver, true
	}
	return 0, false
}

// Vocabulary returns every simulator option without argument, in catalog order
func Vocabulary() []string {
	vocabulary := make([]string, 0, len(flagOptions))
	for _, entry := range classTable {
		if entry.Option != "" {
			vocabulary = append(vocabulary, entry.Option)
		}
	}
	for _, table := range [][]Field{controllerTable, protocolTypeTable, protocolLocationTable, transceiverTable} {
		for _, field := range table {
			vocabulary = append(vocabulary, field.Option)
		}
	}
	return append(vocabulary, "CtrlUnspec", "ProtUnspec")
}

// lookupOption returns the location of an option without argument
func lookupOption(name string) (location, bool) {
	loc, ok := flagOptions[strings.ToLower(name)]
	return loc, ok
}

// lookupLabel finds the label of an enumeration value, or "Unknown"
func lookupLabel(table []Field, value uint8) string {
	for _, field := range table {
		if field.Value == value {
			return field.Label
		}
	}
	return LabelUnknown
}

// lookupOptionName finds the simulator spelling of an enumeration value
func lookupOptionName(table []Field, value uint8) (string, bool) {
	for _, field := range table {
		if field.Value == value {
			return field.Option, true
		}
	}
	return "", false
}

// setFlags returns the labels of all flags set inside a sub-bitfield byte
func setFlags(table []Field, value uint8) []string {
	flags := make([]string, 0, len(table))
	for _, field := range table {
		if value&field.Value != 0 {
			flags = append(flags, field.Label)
		}
	}
	return flags
}

// knownBits returns the OR of every flag of a sub-bitfield table
func knownBits(table []Field) uint8 {
	var bits uint8
	for _, field := range table {
		bits |= field.Value
	}
	return bits
}
