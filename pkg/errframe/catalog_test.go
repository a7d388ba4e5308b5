package errframe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVocabularyIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, option := range Vocabulary() {
		key := strings.ToLower(option)
		assert.False(t, seen[key], "duplicate option %v", option)
		seen[key] = true
		_, ok := lookupOption(option)
		assert.True(t, ok, "option %v not resolvable", option)
	}
	assert.Len(t, seen, len(flagOptions))
}

func TestEnumerationValuesAreUnique(t *testing.T) {
	for _, table := range [][]Field{protocolLocationTable, transceiverTable} {
		values := make(map[uint8]string)
		for _, field := range table {
			previous, exists := values[field.Value]
			assert.False(t, exists, "%v and %v share value 0x%02X", previous, field.Label, field.Value)
			values[field.Value] = field.Label
		}
	}
}

func TestFlagTablesAreSingleBits(t *testing.T) {
	for _, table := range [][]Field{controllerTable, protocolTypeTable} {
		var all uint8
		for _, field := range table {
			assert.NotZero(t, field.Value)
			assert.Zero(t, field.Value&(field.Value-1), "%v is not a single bit", field.Label)
			assert.Zero(t, all&field.Value, "%v overlaps", field.Label)
			all |= field.Value
		}
	}
}

func TestClassesOrder(t *testing.T) {
	expected := []ErrorClass{
		ClassTxTimeout,
		ClassLostArbitration,
		ClassNoAck,
		ClassBusOff,
		ClassBusError,
		ClassRestarted,
		ClassCounters,
		ClassController,
		ClassProtocol,
		ClassTransceiver,
	}
	classes := Classes()
	assert.Len(t, classes, len(expected))
	for i, entry := range classes {
		assert.Equal(t, expected[i], entry.Class)
	}
	// Returned slice is a copy
	classes[0].Option = "modified"
	assert.Equal(t, "TxTimeout", classTable[0].Option)
}

func TestLookupIgnore(t *testing.T) {
	for _, entry := range Classes() {
		class, ok := LookupIgnore(strings.ToUpper(entry.Ignore))
		assert.True(t, ok)
		assert.Equal(t, entry.Class, class)
	}
	class, ok := LookupIgnore("IgnoreTransveiver")
	assert.True(t, ok)
	assert.Equal(t, ClassTransceiver, class)

	_, ok = LookupIgnore("IgnoreEverything")
	assert.False(t, ok)
}
