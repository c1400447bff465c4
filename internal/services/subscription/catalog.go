package subscription

import "github.com/magabrotheeeer/abo-portal/internal/models"

// Catalog отдаёт тарифы по идентификатору.
type Catalog interface {
	Plan(id string) (models.Plan, bool)
	Plans() []models.Plan
}

// StaticCatalog — неизменяемый каталог из конфигурации.
type StaticCatalog struct {
	plans []models.Plan
	byID  map[string]int
}

// NewCatalog создаёт каталог из списка тарифов. При повторе id побеждает первый.
func NewCatalog(plans []models.Plan) *StaticCatalog {
	c := &StaticCatalog{
		plans: make([]models.Plan, len(plans)),
		byID:  make(map[string]int, len(plans)),
	}
	copy(c.plans, plans)
	for i, p := range c.plans {
		if _, ok := c.byID[p.ID]; !ok {
			c.byID[p.ID] = i
		}
	}
	return c
}

func (c *StaticCatalog) Plan(id string) (models.Plan, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Plan{}, false
	}
	return c.plans[i], true
}

func (c *StaticCatalog) Plans() []models.Plan {
	out := make([]models.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
