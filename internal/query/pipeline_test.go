package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineBuilder(t *testing.T) {
	b := NewPipelineBuilder(Match(Eq("a", 1)))
	assert.Equal(t, 1, b.Len())

	b.Add(Skip(5), Limit(5))
	assert.Equal(t, 3, b.Len())

	assert.True(t, b.Remove(Skip(5)), "structurally equal stage should be removed")
	assert.False(t, b.Remove(Skip(6)))
	assert.Equal(t, Pipeline{Match(Eq("a", 1)), Limit(5)}, b.Pipeline())

	snapshot := b.Pipeline()
	snapshot[0] = Count("x")
	assert.Equal(t, Match(Eq("a", 1)), b.Pipeline()[0], "Pipeline must return a copy")

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Pipeline())
}

func TestPipeline_Stages(t *testing.T) {
	p := Pipeline{Skip(1), Limit(2)}
	stages := p.Stages()
	assert.Len(t, stages, 2)
	assert.Equal(t, Skip(1), stages[0])
}
