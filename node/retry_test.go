package node

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBackoff_ExponentialWithCap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := time.Second
	maxDelay := 5 * time.Second

	d0 := ComputeBackoff(0, base, maxDelay, rng)
	assert.GreaterOrEqual(t, d0, base)
	assert.Less(t, d0, base+base)

	d3 := ComputeBackoff(3, base, maxDelay, rng)
	assert.GreaterOrEqual(t, d3, maxDelay)
	assert.Less(t, d3, maxDelay+base)
}

func TestComputeBackoff_ZeroBase(t *testing.T) {
	d := ComputeBackoff(0, 0, time.Second, nil)
	assert.Equal(t, time.Duration(0), d)
}
