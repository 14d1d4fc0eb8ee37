// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package basket

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/validation"
)

// Drop reasons reported in Report and the rows-dropped metric.
const (
	DropInvalidLine     = "invalid_line"
	DropUnknownProduct  = "unknown_product"
	DropUnknownCustomer = "unknown_customer"
	DropStale           = "stale"
	DropInactive        = "inactive_customer"
)

// Report counts what the builder kept and dropped.
type Report struct {
	InputLines       int
	InvalidLines     int
	UnknownProducts  int
	UnknownCustomers int
	StaleLines       int
	InactiveLines    int
	InactiveCustomer int
	KeptLines        int
	Rows             int
	Customers        int
	Products         int
	Segments         int
}

// Counts flattens the report for StageError and log fields.
func (r Report) Counts() map[string]int {
	return map[string]int{
		"input_lines":       r.InputLines,
		DropInvalidLine:     r.InvalidLines,
		DropUnknownProduct:  r.UnknownProducts,
		DropUnknownCustomer: r.UnknownCustomers,
		DropStale:           r.StaleLines,
		DropInactive:        r.InactiveLines,
		"kept_lines":        r.KeptLines,
		"rows":              r.Rows,
	}
}

// Result is the Basket Builder output consumed by every later stage.
type Result struct {
	// Rows is sorted by (customer, product).
	Rows []recommend.BasketRow

	// Customers and Products hold the normalised entities that appear in Rows.
	Customers map[string]recommend.Customer
	Products  map[string]recommend.Product

	// Catalog holds every normalised product, purchased or not.
	Catalog map[string]recommend.Product

	// Lines are the invoice lines that survived all filters, sorted by
	// (customer, date, product).
	Lines []recommend.InvoiceLine

	// MaxDate is the recency reference: the newest valid invoice date.
	MaxDate time.Time

	// HasPrices is false when no product carries a price.
	HasPrices bool

	Report Report
}

// Builder builds basket rows from raw inputs.
type Builder struct {
	cfg    recommend.BasketConfig
	logger zerolog.Logger
}

// NewBuilder creates a Basket Builder.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewBuilder(cfg recommend.BasketConfig, logger zerolog.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: logger.With().Str("component", "basket").Logger(),
	}
}

// customerAgg accumulates customer-level engagement inputs.
type customerAgg struct {
	dates map[time.Time]struct{}
	last  time.Time
	spend float64
}

// rowAgg accumulates one (customer, product) basket row.
type rowAgg struct {
	dates    map[time.Time]struct{}
	quantity float64
	spend    float64
	last     time.Time
}

// Build runs the Basket Builder over in.
//
// Row-level defects are dropped and counted. If every line is defective the
// stage fails with ErrSchema; if nothing survives the cutoff and activity
// filters it fails with ErrDataSparsity.
func (b *Builder) Build(ctx context.Context, in *recommend.Inputs) (*Result, error) {
	report := Report{InputLines: len(in.Invoices)}

	customers := make(map[string]recommend.Customer, len(in.Customers))
	for _, c := range in.Customers {
		customers[c.ID] = recommend.Customer{
			ID:     c.ID,
			Region: recommend.OrUnknown(c.Region),
			Trade:  recommend.OrUnknown(c.Trade),
		}
	}

	catalog := make(map[string]recommend.Product, len(in.Products))
	hasPrices := false
	for i := range in.Products {
		p := normalizeProduct(in.Products[i])
		catalog[p.ID] = p
		if p.Price.Known {
			hasPrices = true
		}
	}

	// Validate, then resolve foreign keys.
	valid := make([]recommend.InvoiceLine, 0, len(in.Invoices))
	var maxDate time.Time
	for _, line := range in.Invoices {
		if err := validation.ValidateStruct(&line); err != nil {
			report.InvalidLines++
			continue
		}
		if line.Day().After(maxDate) {
			maxDate = line.Day()
		}
		if _, ok := catalog[line.ProductID]; !ok {
			report.UnknownProducts++
			continue
		}
		if _, ok := customers[line.CustomerID]; !ok {
			report.UnknownCustomers++
			continue
		}
		valid = append(valid, line)
	}

	if recommend.ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	if len(valid) == 0 {
		b.recordDrops(&report)
		return nil, recommend.NewStageError(recommend.StageBasket, recommend.ErrSchema, report.Counts(),
			errors.New("no invoice line resolved to a known customer and product"))
	}

	// Recency cutoff relative to the newest invoice.
	kept := valid[:0]
	if b.cfg.RecencyCutoffDays > 0 {
		cutoff := maxDate.AddDate(0, 0, -b.cfg.RecencyCutoffDays)
		for _, line := range valid {
			if line.Day().Before(cutoff) {
				report.StaleLines++
				continue
			}
			kept = append(kept, line)
		}
	} else {
		kept = valid
	}

	// Minimum activity in distinct invoice dates.
	activity := make(map[string]map[time.Time]struct{})
	for _, line := range kept {
		dates, ok := activity[line.CustomerID]
		if !ok {
			dates = make(map[time.Time]struct{})
			activity[line.CustomerID] = dates
		}
		dates[line.Day()] = struct{}{}
	}
	lines := make([]recommend.InvoiceLine, 0, len(kept))
	for _, line := range kept {
		if len(activity[line.CustomerID]) < b.cfg.MinInvoices {
			report.InactiveLines++
			continue
		}
		lines = append(lines, line)
	}
	for _, dates := range activity {
		if len(dates) < b.cfg.MinInvoices {
			report.InactiveCustomer++
		}
	}

	b.recordDrops(&report)
	report.KeptLines = len(lines)

	if len(lines) == 0 {
		return nil, recommend.NewStageError(recommend.StageBasket, recommend.ErrDataSparsity, report.Counts(),
			errors.New("no invoice lines survive the recency and activity filters"))
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].CustomerID != lines[j].CustomerID {
			return lines[i].CustomerID < lines[j].CustomerID
		}
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].ProductID < lines[j].ProductID
	})

	rows, custAgg := aggregate(lines, catalog)

	recency := make(map[string]float64, len(custAgg))
	frequency := make(map[string]float64, len(custAgg))
	monetary := make(map[string]float64, len(custAgg))
	for id, agg := range custAgg {
		recency[id] = -float64(recommend.DaysBetween(agg.last, maxDate))
		frequency[id] = float64(len(agg.dates))
		monetary[id] = agg.spend
	}
	recencyScore := recommend.MinMax(recency)
	frequencyScore := recommend.MinMax(frequency)
	monetaryScore := recommend.MinMax(monetary)

	result := &Result{
		Customers: make(map[string]recommend.Customer, len(custAgg)),
		Products:  make(map[string]recommend.Product),
		Catalog:   catalog,
		Lines:     lines,
		MaxDate:   maxDate,
		HasPrices: hasPrices,
	}

	keys := make([]rowKey, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].customer != keys[j].customer {
			return keys[i].customer < keys[j].customer
		}
		return keys[i].product < keys[j].product
	})

	segments := make(map[string]struct{})
	result.Rows = make([]recommend.BasketRow, 0, len(keys))
	for _, k := range keys {
		agg := rows[k]
		cust := customers[k.customer]
		prod := catalog[k.product]
		result.Customers[cust.ID] = cust
		result.Products[prod.ID] = prod
		segments[cust.Segment()] = struct{}{}

		row := recommend.BasketRow{
			CustomerID:        cust.ID,
			ProductID:         prod.ID,
			Segment:           cust.Segment(),
			Region:            cust.Region,
			Trade:             cust.Trade,
			Brand:             prod.Brand,
			L2:                prod.L2,
			L3:                prod.L3,
			Functional:        prod.Functional,
			PurchaseFrequency: len(agg.dates),
			TotalQuantity:     agg.quantity,
			LastPurchase:      agg.last,
			RecencyDays:       recommend.DaysBetween(agg.last, maxDate),
			RecencyScore:      recencyScore[cust.ID],
			FrequencyScore:    frequencyScore[cust.ID],
			MonetaryScore:     0.5,
			PriceBand:         recommend.PriceBandUnknown,
		}
		if hasPrices {
			row.MonetaryScore = monetaryScore[cust.ID]
			if prod.Price.Known {
				row.TotalSpend = recommend.KnownPrice(agg.spend)
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if hasPrices {
		assignPriceBands(result.Rows, catalog)
	}

	report.Rows = len(result.Rows)
	report.Customers = len(result.Customers)
	report.Products = len(result.Products)
	report.Segments = len(segments)
	result.Report = report

	if !hasPrices {
		b.logger.Warn().Msg("No price data found; price bands set to unknown and monetary scores to 0.5")
	}
	b.logger.Info().
		Int("input_lines", report.InputLines).
		Int("kept_lines", report.KeptLines).
		Int("rows", report.Rows).
		Int("customers", report.Customers).
		Int("products", report.Products).
		Int("segments", report.Segments).
		Time("reference_date", maxDate).
		Msg("Basket rows built")

	return result, nil
}

type rowKey struct {
	customer string
	product  string
}

func aggregate(lines []recommend.InvoiceLine, catalog map[string]recommend.Product) (map[rowKey]*rowAgg, map[string]*customerAgg) {
	rows := make(map[rowKey]*rowAgg)
	custs := make(map[string]*customerAgg)

	for _, line := range lines {
		day := line.Day()
		spend := 0.0
		if p := catalog[line.ProductID].Price; p.Known {
			spend = line.Quantity * p.Value
		}

		k := rowKey{customer: line.CustomerID, product: line.ProductID}
		r, ok := rows[k]
		if !ok {
			r = &rowAgg{dates: make(map[time.Time]struct{})}
			rows[k] = r
		}
		r.dates[day] = struct{}{}
		r.quantity += line.Quantity
		r.spend += spend
		if day.After(r.last) {
			r.last = day
		}

		c, ok := custs[line.CustomerID]
		if !ok {
			c = &customerAgg{dates: make(map[time.Time]struct{})}
			custs[line.CustomerID] = c
		}
		c.dates[day] = struct{}{}
		c.spend += spend
		if day.After(c.last) {
			c.last = day
		}
	}

	return rows, custs
}

func normalizeProduct(p recommend.Product) recommend.Product {
	p.Brand = recommend.OrUnknown(p.Brand)
	p.L2 = recommend.OrUnknown(p.L2)
	p.L3 = recommend.OrUnknown(p.L3)
	p.Functional = recommend.OrUnknown(p.Functional)
	return p
}

func (b *Builder) recordDrops(r *Report) {
	metrics.RecordDropped(recommend.StageBasket, DropInvalidLine, r.InvalidLines)
	metrics.RecordDropped(recommend.StageBasket, DropUnknownProduct, r.UnknownProducts)
	metrics.RecordDropped(recommend.StageBasket, DropUnknownCustomer, r.UnknownCustomers)
	metrics.RecordDropped(recommend.StageBasket, DropStale, r.StaleLines)
	metrics.RecordDropped(recommend.StageBasket, DropInactive, r.InactiveLines)

	if r.InvalidLines+r.UnknownProducts+r.UnknownCustomers > 0 {
		b.logger.Warn().
			Int(DropInvalidLine, r.InvalidLines).
			Int(DropUnknownProduct, r.UnknownProducts).
			Int(DropUnknownCustomer, r.UnknownCustomers).
			Msg("Dropped invoice lines with schema defects")
	}
}
