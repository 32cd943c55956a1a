package service

import (
	"policybolt/internal/config"
	"policybolt/internal/model"

	"github.com/samber/lo"
)

const (
	PlanStarter = "starter"
	PlanPro     = "pro"
)

// PlanCatalog holds the billing tiers. Stripe price ids come from config.
type PlanCatalog struct {
	plans []model.Plan
}

func NewPlanCatalog(cfg *config.Config) *PlanCatalog {
	return &PlanCatalog{plans: []model.Plan{
		{ID: PlanStarter, Name: "Starter", PriceID: cfg.StripePriceStarter, MaxProjects: 1},
		{ID: PlanPro, Name: "Pro", PriceID: cfg.StripePricePro, MaxProjects: 10},
	}}
}

func (c *PlanCatalog) All() []model.Plan {
	return c.plans
}

func (c *PlanCatalog) ByID(id string) (model.Plan, bool) {
	return lo.Find(c.plans, func(p model.Plan) bool { return p.ID == id })
}

// ByPriceID maps a Stripe price back to its plan.
func (c *PlanCatalog) ByPriceID(priceID string) (model.Plan, bool) {
	return lo.Find(c.plans, func(p model.Plan) bool { return p.PriceID != "" && p.PriceID == priceID })
}
