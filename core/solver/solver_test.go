package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/planner/core/model"
)

func TestFromValuesKeepsOnlyAssignedPairs(t *testing.T) {
	values := map[string]float64{
		"v_a1_e10": 1,
		"v_a2_e10": 0,
		"v_a2_e11": 1,
		"v_a1_e12": 0.9999999,
		"c_c1_a1":  1,
		"a":        1,
	}
	res := FromValues(values, "out")
	assert.Equal(t, []Pair{{1, 10}, {2, 11}, {1, 12}}, res.Assignments)
	assert.Equal(t, "out", res.Output)
	assert.False(t, res.Infeasible)
	assert.Equal(t, model.Assignment{1: {10, 12}, 2: {11}}, res.ByAgent())
}

func TestInfeasibleResult(t *testing.T) {
	res := InfeasibleResult("This problem is infeasible")
	assert.True(t, res.Infeasible)
	assert.Empty(t, res.ByAgent())
}
