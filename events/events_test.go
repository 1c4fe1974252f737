package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_EmptyURLDisablesPublishing(t *testing.T) {
	p, err := Connect("", "omegacode.pipeline", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNilPublisherIsNoOp(t *testing.T) {
	var p *Publisher
	p.Publish(Event{Type: TypeRunStarted, RunID: "r1"})
	p.Close()
}
