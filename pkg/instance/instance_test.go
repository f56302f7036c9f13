package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersEnv(t *testing.T) {
	t.Setenv("AGENT_INSTANCE_ID", "desk-7")
	assert.Equal(t, "desk-7", ID())
}

func TestIDIsStable(t *testing.T) {
	t.Setenv("AGENT_INSTANCE_ID", "")
	first := ID()
	assert.NotEmpty(t, first)
	if len(first) == 16 {
		assert.Equal(t, first, ID())
	}
}
