// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package testinfra

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Epoch is day zero for fixture dates.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Day returns Epoch plus n days.
func Day(n int) time.Time {
	return Epoch.AddDate(0, 0, n)
}

// Dataset accumulates fixture entities.
type Dataset struct {
	Inputs recommend.Inputs
}

// NewDataset creates an empty fixture with feedback available but empty.
func NewDataset() *Dataset {
	return &Dataset{}
}

// Customer adds a customer.
func (d *Dataset) Customer(id, region, trade string) *Dataset {
	d.Inputs.Customers = append(d.Inputs.Customers, recommend.Customer{ID: id, Region: region, Trade: trade})
	return d
}

// Product adds a product. A negative price means no price.
func (d *Dataset) Product(id, brand, l2, l3 string, inStock bool, price float64) *Dataset {
	p := recommend.Product{
		ID:         id,
		Name:       "Product " + id,
		Brand:      brand,
		L2:         l2,
		L3:         l3,
		Functional: l3,
		InStock:    inStock,
	}
	if price >= 0 {
		p.Price = recommend.KnownPrice(price)
	}
	d.Inputs.Products = append(d.Inputs.Products, p)
	return d
}

// Buy adds an invoice line.
func (d *Dataset) Buy(customer, product string, qty float64, date time.Time) *Dataset {
	d.Inputs.Invoices = append(d.Inputs.Invoices, recommend.InvoiceLine{
		CustomerID: customer,
		ProductID:  product,
		Quantity:   qty,
		Date:       date,
	})
	return d
}

// Basket adds one invoice line per product, all on the same date.
func (d *Dataset) Basket(customer string, date time.Time, products ...string) *Dataset {
	for _, p := range products {
		d.Buy(customer, p, 1, date)
	}
	return d
}

// Feedback adds a feedback record.
func (d *Dataset) Feedback(customer, product string, sig recommend.Signal, date time.Time) *Dataset {
	d.Inputs.Feedback.Records = append(d.Inputs.Feedback.Records, recommend.FeedbackRecord{
		CustomerID: customer,
		ProductID:  product,
		Signal:     sig,
		Date:       date,
	})
	return d
}

// Build returns a pointer to the accumulated inputs.
func (d *Dataset) Build() *recommend.Inputs {
	return &d.Inputs
}

// SyntheticOptions sizes a synthetic data set.
type SyntheticOptions struct {
	Seed                int64
	Regions             []string
	Trades              []string
	CustomersPerSegment int
	ProductsPerL2       int
	Days                int
	OrdersPerCustomer   int
}

// DefaultSyntheticOptions returns a small two-segment data set.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Seed:                42,
		Regions:             []string{"North"},
		Trades:              []string{"Plumbing", "Electrical"},
		CustomersPerSegment: 24,
		ProductsPerL2:       6,
		Days:                360,
		OrdersPerCustomer:   8,
	}
}

var syntheticL2 = []string{"Plumbing", "Electrical", "Paint", "Tools"}
var syntheticBrands = []string{"Acme", "Bolt", "Crest"}

// Synthetic generates a reproducible data set. Each trade favours its own L2
// department, and within a department products are bought in fixed pairs so
// that association rules exist.
func Synthetic(opts SyntheticOptions) *recommend.Inputs {
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // deterministic fixtures
	d := NewDataset()

	for li, l2 := range syntheticL2 {
		for i := 0; i < opts.ProductsPerL2; i++ {
			id := fmt.Sprintf("%s-%02d", l2[:2], i)
			brand := syntheticBrands[(li+i)%len(syntheticBrands)]
			l3 := fmt.Sprintf("%s-sub%d", l2, i%3)
			price := 5 + float64(i)*7.5 + float64(li)
			d.Product(id, brand, l2, l3, i%5 != 4, price)
		}
	}

	for _, region := range opts.Regions {
		for ti, trade := range opts.Trades {
			home := syntheticL2[ti%len(syntheticL2)]
			for c := 0; c < opts.CustomersPerSegment; c++ {
				id := fmt.Sprintf("%s-%s-%03d", region[:1], trade[:2], c)
				d.Customer(id, region, trade)

				// Two behavioural groups per segment: heavy home-department
				// buyers and cross-department buyers.
				cross := c%2 == 1
				for o := 0; o < opts.OrdersPerCustomer; o++ {
					day := rng.Intn(opts.Days)
					l2 := home
					if cross && rng.Intn(2) == 0 {
						l2 = syntheticL2[(ti+1+rng.Intn(len(syntheticL2)-1))%len(syntheticL2)]
					}
					pair := rng.Intn(opts.ProductsPerL2 / 2)
					a := fmt.Sprintf("%s-%02d", l2[:2], pair*2)
					b := fmt.Sprintf("%s-%02d", l2[:2], pair*2+1)
					d.Buy(id, a, float64(1+rng.Intn(5)), Day(day))
					if rng.Intn(4) != 0 {
						d.Buy(id, b, float64(1+rng.Intn(3)), Day(day))
					}
				}
			}
		}
	}

	return d.Build()
}
