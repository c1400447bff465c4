package models

// Plan — тариф из каталога.
type Plan struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	PriceMonthly float64 `yaml:"price_monthly" json:"priceMonthly"`
	PriceYearly  float64 `yaml:"price_yearly" json:"priceYearly"`
	ComingSoon   bool    `yaml:"coming_soon" json:"comingSoon"`
}

// PriceFor возвращает цену тарифа для периода оплаты.
func (p Plan) PriceFor(c Cycle) float64 {
	if c == CycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// DefaultPlans — каталог по умолчанию, если в конфиге тарифы не заданы.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "spotify-only", Name: "Spotify Only", PriceMonthly: 7.99, PriceYearly: 7.99},
		{ID: "apple-music-only", Name: "Apple Music Only", PriceMonthly: 7.99, PriceYearly: 7.99, ComingSoon: true},
		{ID: "apple-one", Name: "Apple One", PriceMonthly: 14.99, PriceYearly: 14.99},
		{ID: "premium", Name: "Premium (alles)", PriceMonthly: 19.99, PriceYearly: 19.99},
	}
}
