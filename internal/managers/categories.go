package managers

import (
	"context"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// CategoriesManager manages the type category tree.
type CategoriesManager struct {
	core[models.Category]
}

// NewCategoriesManager returns a CategoriesManager on db.
func NewCategoriesManager(db database.Database, deps Deps) *CategoriesManager {
	return &CategoriesManager{newCore[models.Category](db, KindCategories,
		func() query.Builder { return query.NewCategoryQueryBuilder() }, deps)}
}

// Iterate returns one page of categories.
func (m *CategoriesManager) Iterate(ctx context.Context, params query.Parameters) (*query.IterationResult[models.Category], error) {
	return m.iterate(ctx, params, nil)
}

// Get returns one category.
func (m *CategoriesManager) Get(ctx context.Context, id int) (*models.Category, error) {
	return m.get(ctx, id)
}

func (m *CategoriesManager) all(ctx context.Context) ([]models.Category, error) {
	return m.find(ctx, bson.D{}, database.FindOptions{
		Sort: bson.D{{Key: "meta.order", Value: 1}, {Key: "public_id", Value: 1}},
	})
}

// Tree returns every category nested under its parent. Categories whose
// parent no longer exists are treated as roots.
func (m *CategoriesManager) Tree(ctx context.Context) ([]models.CategoryNode, error) {
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	return buildCategoryTree(cats), nil
}

func buildCategoryTree(cats []models.Category) []models.CategoryNode {
	known := make(map[int]bool, len(cats))
	for _, c := range cats {
		known[c.PublicID] = true
	}
	children := make(map[int][]models.Category)
	var roots []models.Category
	for _, c := range cats {
		if c.Parent == nil || !known[*c.Parent] || *c.Parent == c.PublicID {
			roots = append(roots, c)
			continue
		}
		children[*c.Parent] = append(children[*c.Parent], c)
	}
	var build func(c models.Category, depth int) models.CategoryNode
	build = func(c models.Category, depth int) models.CategoryNode {
		node := models.CategoryNode{Category: c, Children: []models.CategoryNode{}}
		if depth > len(cats) {
			return node
		}
		for _, child := range children[c.PublicID] {
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}
	out := make([]models.CategoryNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0))
	}
	return out
}

func (m *CategoriesManager) validate(ctx context.Context, c *models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return validationf("category name is required")
	}
	n, err := m.count(ctx, bson.D{
		{Key: "name", Value: c.Name},
		{Key: "public_id", Value: bson.D{{Key: "$ne", Value: c.PublicID}}},
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyExists
	}
	if c.Parent != nil {
		if *c.Parent == c.PublicID && c.PublicID != 0 {
			return validationf("category cannot be its own parent")
		}
		if _, err := m.get(ctx, *c.Parent); err != nil {
			return validationf("parent category %d does not exist", *c.Parent)
		}
		if c.PublicID != 0 {
			cats, err := m.all(ctx)
			if err != nil {
				return err
			}
			if isDescendant(cats, *c.Parent, c.PublicID) {
				return validationf("category %d cannot move below its own descendant", c.PublicID)
			}
		}
	}
	if c.Types == nil {
		c.Types = []int{}
	}
	if c.Label == "" {
		c.Label = c.Name
	}
	return nil
}

// isDescendant reports whether id lies in the subtree rooted at ancestor.
func isDescendant(cats []models.Category, id, ancestor int) bool {
	parents := make(map[int]int, len(cats))
	for _, c := range cats {
		if c.Parent != nil {
			parents[c.PublicID] = *c.Parent
		}
	}
	for steps := 0; steps <= len(cats); steps++ {
		if id == ancestor {
			return true
		}
		p, ok := parents[id]
		if !ok {
			return false
		}
		id = p
	}
	return false
}

// Insert stores a new category.
func (m *CategoriesManager) Insert(ctx context.Context, c *models.Category) (int, error) {
	c.PublicID = 0
	if err := m.validate(ctx, c); err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	c.PublicID = id
	if err := m.insert(ctx, c); err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces a category.
func (m *CategoriesManager) Update(ctx context.Context, c *models.Category) error {
	if _, err := m.get(ctx, c.PublicID); err != nil {
		return err
	}
	if err := m.validate(ctx, c); err != nil {
		return &UpdateError{Resource: m.resource(), ID: c.PublicID, Err: err}
	}
	return m.update(ctx, c.PublicID, c)
}

// Delete removes a category. Its children move up to its parent.
func (m *CategoriesManager) Delete(ctx context.Context, id int) error {
	c, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.delete(ctx, id); err != nil {
		return err
	}
	children, err := m.find(ctx, bson.D{{Key: "parent", Value: id}}, database.FindOptions{})
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := m.set(ctx, child.PublicID, bson.D{{Key: "parent", Value: c.Parent}}); err != nil {
			return err
		}
	}
	return nil
}

// removeType drops typeID from every category listing it.
func (m *CategoriesManager) removeType(ctx context.Context, typeID int) error {
	cats, err := m.find(ctx, bson.D{{Key: "types", Value: typeID}}, database.FindOptions{})
	if err != nil {
		return err
	}
	for _, c := range cats {
		types := slices.DeleteFunc(slices.Clone(c.Types), func(t int) bool { return t == typeID })
		if err := m.set(ctx, c.PublicID, bson.D{{Key: "types", Value: types}}); err != nil {
			return err
		}
	}
	return nil
}
