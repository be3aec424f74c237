package query

import (
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Pipeline is an ordered sequence of aggregation stages. Order is
// significant: joins precede filters, filters precede sort and pagination.
type Pipeline []bson.D

// Stages returns the pipeline as a BSON array, suitable for embedding in
// $lookup or $facet.
func (p Pipeline) Stages() bson.A {
	out := make(bson.A, len(p))
	for i, s := range p {
		out[i] = s
	}
	return out
}

// PipelineBuilder accumulates stages. It is not safe for concurrent use;
// one instance is created per query.
type PipelineBuilder struct {
	pipeline Pipeline
}

// NewPipelineBuilder returns a builder seeded with stages.
func NewPipelineBuilder(stages ...bson.D) *PipelineBuilder {
	return &PipelineBuilder{pipeline: append(Pipeline(nil), stages...)}
}

// Add appends stages.
func (b *PipelineBuilder) Add(stages ...bson.D) {
	b.pipeline = append(b.pipeline, stages...)
}

// Remove deletes the first stage structurally equal to stage and reports
// whether one was found.
func (b *PipelineBuilder) Remove(stage bson.D) bool {
	for i, s := range b.pipeline {
		if reflect.DeepEqual(s, stage) {
			b.pipeline = append(b.pipeline[:i], b.pipeline[i+1:]...)
			return true
		}
	}
	return false
}

// Clear resets the builder to an empty pipeline.
func (b *PipelineBuilder) Clear() {
	b.pipeline = nil
}

// Len returns the number of stages.
func (b *PipelineBuilder) Len() int {
	return len(b.pipeline)
}

// Pipeline returns a copy of the accumulated stages.
func (b *PipelineBuilder) Pipeline() Pipeline {
	out := make(Pipeline, len(b.pipeline))
	copy(out, b.pipeline)
	return out
}

// Builder is implemented by every resource query builder. Build produces
// the page query and Count the paired total query; both share the same
// join, filter and access-control stages.
type Builder interface {
	Build(filter Filter, limit, skip int, sort string, order int, access *Access) (Pipeline, error)
	Count(filter Filter, access *Access) (Pipeline, error)
}
