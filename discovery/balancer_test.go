package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInstances = []ServiceInstance{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all instances
	var results []string
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		results = append(results, inst.Addr)
	}
	assert.Equal(t, []string{":8001", ":8002", ":8003"}, results)

	// Pick again, should wrap around to first
	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	assert.Equal(t, results[0], inst.Addr)
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]ServiceInstance{})
	assert.Error(t, err)
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so :8001 and :8003 should be ~2x of :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomUnweighted(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]ServiceInstance{{Addr: ":9000"}})
	require.NoError(t, err)
	assert.Equal(t, ":9000", inst.Addr)

	_, err = b.Pick(nil)
	assert.Error(t, err)
}
