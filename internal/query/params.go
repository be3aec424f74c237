package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidParameters is wrapped by every collection-parameter parse failure.
var ErrInvalidParameters = errors.New("invalid collection parameters")

// Collection parameter defaults.
const (
	DefaultLimit = 10
	DefaultSort  = "public_id"
)

// Filter is either one mapping, wrapped in a single $match stage, or a list
// of caller-formed stages appended verbatim. The zero value is the empty
// mapping.
type Filter struct {
	doc    bson.D
	stages []bson.D
	list   bool
}

// MatchFilter returns a mapping filter.
func MatchFilter(doc bson.D) Filter {
	return Filter{doc: doc}
}

// StageFilter returns a raw-stage filter.
func StageFilter(stages ...bson.D) Filter {
	return Filter{stages: stages, list: true}
}

// IsList reports whether the filter carries raw stages.
func (f Filter) IsList() bool { return f.list }

// Doc returns the mapping of a mapping filter.
func (f Filter) Doc() bson.D { return f.doc }

// Stages returns the stages this filter contributes to a pipeline.
func (f Filter) Stages() []bson.D {
	if f.list {
		out := make([]bson.D, len(f.stages))
		copy(out, f.stages)
		return out
	}
	return []bson.D{Match(f.doc)}
}

// With narrows the filter by an additional condition. Mapping filters are
// combined with $and; stage filters gain a trailing $match.
func (f Filter) With(cond bson.D) Filter {
	if f.list {
		stages := append(f.Stages(), Match(cond))
		return StageFilter(stages...)
	}
	if len(f.doc) == 0 {
		return MatchFilter(cond)
	}
	return MatchFilter(And(f.doc, cond))
}

// ParseFilter decodes an Extended JSON filter: an object becomes a mapping
// filter, an array a list of stages. Empty input yields the zero Filter.
func ParseFilter(raw string) (Filter, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return Filter{}, nil
	}
	switch data[0] {
	case '{':
		var doc bson.D
		if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
			return Filter{}, fmt.Errorf("%w: filter: %v", ErrInvalidParameters, err)
		}
		return MatchFilter(doc), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return Filter{}, fmt.Errorf("%w: filter: %v", ErrInvalidParameters, err)
		}
		stages := make([]bson.D, 0, len(items))
		for i, item := range items {
			var stage bson.D
			if err := bson.UnmarshalExtJSON(item, false, &stage); err != nil {
				return Filter{}, fmt.Errorf("%w: filter stage %d: %v", ErrInvalidParameters, i, err)
			}
			stages = append(stages, stage)
		}
		return StageFilter(stages...), nil
	default:
		return Filter{}, fmt.Errorf("%w: filter must be a JSON object or array", ErrInvalidParameters)
	}
}

// Parameters are the collection parameters of a listing request.
type Parameters struct {
	Filter     Filter
	Limit      int // 0 means unbounded.
	Page       int // 1-based.
	Sort       string
	Order      int
	Projection bson.D
}

// DefaultParameters returns the parameters used when a request sets none.
func DefaultParameters() Parameters {
	return Parameters{Limit: DefaultLimit, Page: 1, Sort: DefaultSort, Order: Ascending}
}

// Skip returns the number of documents preceding the requested page.
func (p Parameters) Skip() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// ParseParameters reads filter, limit, page, sort, order and projection from
// a query string, falling back to DefaultParameters.
func ParseParameters(v url.Values) (Parameters, error) {
	p := DefaultParameters()

	f, err := ParseFilter(v.Get("filter"))
	if err != nil {
		return p, err
	}
	p.Filter = f

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: limit %q", ErrInvalidParameters, s)
		}
		p.Limit = n
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page %q", ErrInvalidParameters, s)
		}
		p.Page = n
	}
	if s := strings.TrimSpace(v.Get("sort")); s != "" {
		p.Sort = s
	}
	if s := v.Get("order"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || (n != Ascending && n != Descending) {
			return p, fmt.Errorf("%w: order %q", ErrInvalidParameters, s)
		}
		p.Order = n
	}
	if s := strings.TrimSpace(v.Get("projection")); s != "" {
		var proj bson.D
		if err := bson.UnmarshalExtJSON([]byte(s), false, &proj); err != nil {
			return p, fmt.Errorf("%w: projection: %v", ErrInvalidParameters, err)
		}
		p.Projection = proj
	}
	return p, nil
}
