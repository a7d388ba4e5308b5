package errframe

import (
	"fmt"
	"strings"
)

// Clause is one decoded error class together with its payload
type Clause interface {
	Class() ErrorClass
	String() string
}

// Flag is an error class without payload, e.g. BusOff
type Flag struct {
	class ErrorClass
	Name  string
}

func (f Flag) Class() ErrorClass { return f.class }
func (f Flag) String() string { return f.Name }

// LostArbitration holds the bit number where arbitration was lost
type LostArbitration struct {
	Bit uint8
}

func (LostArbitration) Class() ErrorClass { return ClassLostArbitration }
func (l LostArbitration) String() string { return fmt.Sprintf("LostArBit%02d", l.Bit) }

// Counters holds the controller error counters
type Counters struct {
	TX uint8
	RX uint8
}

func (Counters) Class() ErrorClass { return ClassCounters }
func (c Counters) String() string { return fmt.Sprintf("Count(TX=%d,RX=%d)", c.TX, c.RX) }

// Controller holds the controller status flags, or "Unspec"
type Controller struct {
	Status []string
}

func (Controller) Class() ErrorClass { return ClassController }
func (c Controller) String() string { return "Ctrl(" + strings.Join(c.Status, ",") + ")" }

// Protocol holds the protocol error types, or "Unspec", and the location
type Protocol struct {
	Types    []string
	Location string
}

func (Protocol) Class() ErrorClass { return ClassProtocol }
func (p Protocol) String() string {
	return "Prot(Type(" + strings.Join(p.Types, ",") + "),Loc(" + p.Location + "))"
}

// Transceiver holds the transceiver status
type Transceiver struct {
	Status string
}

func (Transceiver) Class() ErrorClass { return ClassTransceiver }
func (t Transceiver) String() string { return "Trans(" + t.Status + ")" }

// Description is the ordered list of clauses decoded from one frame
type Description []Clause

// Tokens returns the text of every clause
func (d Description) Tokens() []string {
	tokens := make([]string, len(d))
	for i, clause := range d {
		tokens[i] = clause.String()
	}
	return tokens
}

func (d Description) String() string {
	return strings.Join(d.Tokens(), ",")
}
