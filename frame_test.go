package canerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameFlags(t *testing.T) {
	frame := NewFrame(0x040|CanErrFlag, 0, CanErrDlc)
	assert.True(t, frame.IsError())
	assert.False(t, frame.IsExtended())
	assert.EqualValues(t, 8, frame.DLC)

	frame = NewFrame(0x123|CanEffFlag, 0, 0)
	assert.False(t, frame.IsError())
	assert.True(t, frame.IsExtended())
}
