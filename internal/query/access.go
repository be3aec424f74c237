package query

import (
	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/pkg/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Access names the requesting group and the operation a listing is for.
// A nil *Access disables access-control filtering.
type Access struct {
	GroupID    int
	Permission acl.Permission
}

// AccessControlQueryBuilder produces the stages that filter documents by the
// access-control list of their owning type.
type AccessControlQueryBuilder struct {
	*PipelineBuilder
}

// NewAccessControlQueryBuilder returns an empty builder.
func NewAccessControlQueryBuilder() *AccessControlQueryBuilder {
	return &AccessControlQueryBuilder{PipelineBuilder: NewPipelineBuilder()}
}

// Build returns the type lookup, its unwind and the ACL match for documents
// carrying a type_id field.
func (b *AccessControlQueryBuilder) Build(access Access) Pipeline {
	b.Clear()
	b.Add(
		lookupType("$type_id", "type"),
		Unwind("$type", false),
		Match(acl.MatchCondition("type", access.GroupID, access.Permission)),
	)
	return b.Pipeline()
}

// BuildJoined returns only the ACL match, for pipelines whose preset has
// already joined and unwound the owning type under "type".
func (b *AccessControlQueryBuilder) BuildJoined(access Access) Pipeline {
	b.Clear()
	b.Add(Match(acl.MatchCondition("type", access.GroupID, access.Permission)))
	return b.Pipeline()
}

// BuildLooked is Build for documents that reference an object rather than a
// type: the object is joined first and its type_id drives the type lookup.
func (b *AccessControlQueryBuilder) BuildLooked(access Access) Pipeline {
	b.Clear()
	b.Add(
		Lookup(models.CollectionObjects, "object_id", "public_id", "object"),
		Unwind("$object", false),
		lookupType("$object.type_id", "type"),
		Unwind("$type", false),
		Match(acl.MatchCondition("type", access.GroupID, access.Permission)),
	)
	return b.Pipeline()
}

func lookupType(typeIDExpr, as string) bson.D {
	return LookupSub(
		models.CollectionTypes,
		bson.D{{Key: "type_id", Value: typeIDExpr}},
		Pipeline{Match(ExprEq("$public_id", "$$type_id"))},
		as,
	)
}
