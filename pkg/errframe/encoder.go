package errframe

import (
	"fmt"
	"strconv"
	"strings"

	canerr "github.com/samsamfire/gocanerr"
)

// Option is one simulator fault option, e.g. "BusOff" or "LostArBit=09"
type Option struct {
	Name     string
	Value    string
	HasValue bool
}

// ParseOption splits a "Name[=value]" token
func ParseOption(token string) Option {
	name, value, found := strings.Cut(token, "=")
	return Option{Name: name, Value: value, HasValue: found}
}

func (o Option) String() string {
	if o.HasValue {
		return o.Name + "=" + o.Value
	}
	return o.Name
}

// UnknownOptionError names the token that could not be encoded
type UnknownOptionError struct {
	Token string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("invalid option %v", e.Token)
}

func (e *UnknownOptionError) Unwrap() error {
	return canerr.ErrUnknownOption
}

// Encoder accumulates options into a descriptor.
// It is a value : Apply returns an updated copy and leaves the receiver untouched.
type Encoder struct {
	desc     Descriptor
	assigned [8]bool
}

// NewEncoder starts from an empty error frame
func NewEncoder() Encoder {
	return Encoder{}
}

// Descriptor returns the frame accumulated so far
func (e Encoder) Descriptor() Descriptor {
	return e.desc
}

// Apply encodes one more option.
// Sub-bitfield bytes accumulate flags, other bytes accept a single value
func (e Encoder) Apply(opt Option) (Encoder, error) {
	loc, err := resolve(opt)
	if err != nil {
		return e, err
	}
	next := e
	next.desc.Class |= loc.class
	switch {
	case loc.kind == kindClass:
	case bitfieldBytes[loc.pos]:
		next.desc.Data[loc.pos] |= loc.value
	case e.assigned[loc.pos] && e.desc.Data[loc.pos] != loc.value:
		return e, fmt.Errorf("%w : %v (data[%d] already 0x%02X)", canerr.ErrConflictingOption, opt, loc.pos, e.desc.Data[loc.pos])
	default:
		next.desc.Data[loc.pos] = loc.value
		next.assigned[loc.pos] = true
	}
	return next, nil
}

// Encode builds a descriptor from all options.
// The first invalid option aborts the whole encoding
func Encode(options []Option) (Descriptor, error) {
	encoder := NewEncoder()
	var err error
	for _, opt := range options {
		encoder, err = encoder.Apply(opt)
		if err != nil {
			return Descriptor{}, err
		}
	}
	return encoder.Descriptor(), nil
}

// EncodeArgs is [Encode] for raw "Name[=value]" tokens
func EncodeArgs(tokens []string) (Descriptor, error) {
	options := make([]Option, 0, len(tokens))
	for _, token := range tokens {
		options = append(options, ParseOption(token))
	}
	return Encode(options)
}

// resolve finds where an option writes and the value it writes
func resolve(opt Option) (location, error) {
	invalid := &UnknownOptionError{Token: opt.String()}
	if !opt.HasValue {
		loc, ok := lookupOption(opt.Name)
		if !ok {
			return location{}, invalid
		}
		return loc, nil
	}

	loc, ok := argumentOptions[strings.ToLower(opt.Name)]
	if !ok {
		pos, isData := dataPosition(opt.Name)
		if !isData {
			return location{}, invalid
		}
		loc = location{kind: kindHex, class: governingClass[pos], pos: pos}
	}
	value, ok := parseArgument(loc.kind, opt.Value)
	if !ok {
		return location{}, invalid
	}
	loc.value = value
	return loc, nil
}

// dataPosition matches "Data0" ... "Data7"
func dataPosition(name string) (int, bool) {
	if len(name) != 5 || !strings.EqualFold(name[:4], "data") {
		return 0, false
	}
	pos := int(name[4]) - '0'
	if pos < 0 || pos > 7 {
		return 0, false
	}
	return pos, true
}

// parseArgument accepts exactly two digits : decimal 00..29 or hexadecimal 00..FF
func parseArgument(kind optionKind, raw string) (uint8, bool) {
	if len(raw) != 2 {
		return 0, false
	}
	switch kind {
	case kindDecimal:
		if raw[0] < '0' || raw[0] > '2' {
			return 0, false
		}
		value, err := strconv.ParseUint(raw, 10, 8)
		return uint8(value), err == nil
	case kindHex:
		value, err := strconv.ParseUint(raw, 16, 8)
		return uint8(value), err == nil
	}
	return 0, false
}
