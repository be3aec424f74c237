package query

import (
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// IterationResult is one page of a listing plus the total across all pages.
// Count is always len(Results).
type IterationResult[T any] struct {
	Results []T
	Count   int
	Total   int
}

// NewIterationResult packages a page and its total.
func NewIterationResult[T any](results []T, total int) *IterationResult[T] {
	if results == nil {
		results = []T{}
	}
	return &IterationResult[T]{Results: results, Count: len(results), Total: total}
}

// Hydrate converts a raw record into T by a BSON round trip. Keys unknown
// to T are ignored.
func Hydrate[T any](raw bson.M) (T, error) {
	var out T
	data, err := bson.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("marshal record: %w", err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal record into %T: %w", out, err)
	}
	return out, nil
}

// ConvertTo hydrates every record of r into T. A result already holding T
// is returned unchanged.
func ConvertTo[T, S any](r *IterationResult[S]) (*IterationResult[T], error) {
	if same, ok := any(r).(*IterationResult[T]); ok {
		return same, nil
	}
	out := make([]T, 0, len(r.Results))
	for i, rec := range r.Results {
		raw, err := toRaw(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		v, err := Hydrate[T](raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return &IterationResult[T]{Results: out, Count: len(out), Total: r.Total}, nil
}

func toRaw(rec any) (bson.M, error) {
	if m, ok := rec.(bson.M); ok {
		return m, nil
	}
	data, err := bson.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListResult holds an unpaginated listing. Its total is the result length,
// computed on first access.
type ListResult[T any] struct {
	Results []T

	once  sync.Once
	total int
}

// NewListResult wraps results.
func NewListResult[T any](results []T) *ListResult[T] {
	if results == nil {
		results = []T{}
	}
	return &ListResult[T]{Results: results}
}

// Total returns the number of results.
func (l *ListResult[T]) Total() int {
	l.once.Do(func() { l.total = len(l.Results) })
	return l.total
}

// Pager describes the page a listing returned.
type Pager struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPager computes the page count. A zero limit means everything fits on
// one page.
func NewPager(page, limit, total int) Pager {
	pages := 1
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pager{Page: page, PageSize: limit, TotalPages: pages}
}

// Response is the JSON body of a listing.
type Response[T any] struct {
	Results []T   `json:"results"`
	Count   int   `json:"count"`
	Total   int   `json:"total"`
	Pager   Pager `json:"pager"`
}

// NewResponse renders r for the page described by p.
func NewResponse[T any](r *IterationResult[T], p Parameters) Response[T] {
	return Response[T]{
		Results: r.Results,
		Count:   r.Count,
		Total:   r.Total,
		Pager:   NewPager(p.Page, p.Limit, r.Total),
	}
}
