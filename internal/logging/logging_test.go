package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitWriterSetsLevel(t *testing.T) {
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, false) })

	var buf bytes.Buffer
	InitWriter(&buf, false)
	assert.False(t, DebugEnabled())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	InitWriter(&buf, true)
	assert.True(t, DebugEnabled())
	log.Debug().Str("iteration", "1").Msg("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "iteration=")
}
