package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug().Msg("hidden")
	log.Info().Str("component", "lib").Msg("building")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "building")
	assert.Contains(t, out, "component=lib")
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug().Msg("details")
	assert.Contains(t, buf.String(), "details")
}
