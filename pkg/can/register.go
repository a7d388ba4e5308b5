package can

import (
	"fmt"
	"sort"

	canerr "github.com/samsamfire/gocanerr"
)

type NewInterfaceFunc func(channel string) (canerr.Bus, error)

var AvailableInterfaces = make(map[string]NewInterfaceFunc)

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	AvailableInterfaces[interfaceType] = newInterface
}

// Registered interface types, sorted
func ImplementedInterfaces() []string {
	names := make([]string, 0, len(AvailableInterfaces))
	for name := range AvailableInterfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create a new CAN bus with given interface
// Currently supported : socketcan, socketcanv2, virtualcan
func NewBus(canInterface string, channel string) (canerr.Bus, error) {
	createInterface, ok := AvailableInterfaces[canInterface]
	if !ok {
		return nil, fmt.Errorf("%w : %v", canerr.ErrUnsupportedInterface, canInterface)
	}
	return createInterface(channel)
}
