package catalog

import "github.com/shopspring/decimal"

// DefaultItems is the Viylo service lineup, priced in JOD.
func DefaultItems() []Item {
	return []Item{
		{ID: "video_edit", Name: "Video Editing", Description: "Polished edits for ads, social and corporate.", UnitPrice: decimal.NewFromInt(150)},
		{ID: "web_dev", Name: "Web Development", Description: "Fast, responsive websites tailored to your goals.", UnitPrice: decimal.NewFromInt(400)},
		{ID: "logo", Name: "Logo Design", Description: "Unique brand identity with scalable vectors.", UnitPrice: decimal.NewFromInt(100)},
		{ID: "smm", Name: "Social Media Management", Description: "Content planning, posting & reporting each month.", UnitPrice: decimal.NewFromInt(200)},
		{ID: "seo", Name: "SEO Setup", Description: "On-page SEO, sitemap, indexing & performance.", UnitPrice: decimal.NewFromInt(180)},
		{ID: "branding", Name: "Brand Kit", Description: "Fonts, colors, social templates & guidelines.", UnitPrice: decimal.NewFromInt(220)},
	}
}

// Default builds the Viylo catalog in the given base currency.
func Default(currency string) *Catalog {
	c, err := New(currency, DefaultItems()...)
	if err != nil {
		panic(err)
	}
	return c
}
