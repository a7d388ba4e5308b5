package monitor

import (
	"strings"

	canerr "github.com/samsamfire/gocanerr"
	"github.com/samsamfire/gocanerr/pkg/errframe"
)

// Filter is the error class mask handed to the CAN_RAW_ERR_FILTER socket option.
// It starts with every class enabled and classes are removed with [Filter.Ignore]
type Filter uint32

// NewFilter returns a filter accepting every error class
func NewFilter() Filter {
	return Filter(canerr.CanErrFlag | canerr.CanErrMask)
}

// Ignore removes the given classes from the filter
func (f Filter) Ignore(class errframe.ErrorClass) Filter {
	return f &^ Filter(class)
}

// Accepts returns true if at least one class of the mask passes the filter
func (f Filter) Accepts(class errframe.ErrorClass) bool {
	return uint32(f)&uint32(class)&canerr.CanErrMask != 0
}

// Mask is the raw value for the socket option
func (f Filter) Mask() uint32 {
	return uint32(f)
}

func (f Filter) String() string {
	return errframe.Binary(uint32(f))
}

// Options of the monitor command line
type Options struct {
	Filter   Filter
	ShowBits bool
}

// ParseArgs reads "Ignore<Class>" and "ShowBits" tokens, case insensitive.
// Any other token fails with [errframe.UnknownOptionError]
func ParseArgs(tokens []string) (Options, error) {
	options := Options{Filter: NewFilter()}
	for _, token := range tokens {
		if strings.EqualFold(token, "ShowBits") {
			options.ShowBits = true
			continue
		}
		class, ok := errframe.LookupIgnore(token)
		if !ok {
			return Options{}, &errframe.UnknownOptionError{Token: token}
		}
		options.Filter = options.Filter.Ignore(class)
	}
	return options, nil
}
