package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, ColorCritical, SeverityColor("critical"))
	assert.Equal(t, ColorHigh, SeverityColor("HIGH"))
	assert.Equal(t, ColorLow, SeverityColor("Low"))
	assert.Equal(t, ColorWhite, SeverityColor("unknown"))
}
