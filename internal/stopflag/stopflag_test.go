package stopflag_test

import (
	"testing"

	"github.com/milosgajdos/go-tftp/internal/stopflag"
	"github.com/stretchr/testify/assert"
)

func TestFlagStartsUnset(t *testing.T) {
	f := stopflag.New()
	assert.False(t, f.Stopped())
}

func TestFlagStopIsIdempotent(t *testing.T) {
	f := stopflag.New()

	f.Stop()
	f.Stop()

	assert.True(t, f.Stopped())
}
