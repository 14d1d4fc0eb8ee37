// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package testinfra

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Paths are the fixture files written by WriteCSV.
type Paths struct {
	Customers string
	Products  string
	Invoices  string
	Feedback  string
}

// CSVOptions controls optional columns in WriteCSV output.
type CSVOptions struct {
	// PriceColumn names the price column; empty omits prices entirely.
	PriceColumn string

	// OmitFeedback skips writing feedback.csv.
	OmitFeedback bool
}

// WriteCSV writes in as CSV files under dir.
func WriteCSV(dir string, in *recommend.Inputs, opts CSVOptions) (Paths, error) {
	p := Paths{
		Customers: filepath.Join(dir, "customers.csv"),
		Products:  filepath.Join(dir, "products.csv"),
		Invoices:  filepath.Join(dir, "invoices.csv"),
		Feedback:  filepath.Join(dir, "feedback.csv"),
	}

	customers := [][]string{{"customer_id", "region", "end_use"}}
	for _, c := range in.Customers {
		customers = append(customers, []string{c.ID, c.Region, c.Trade})
	}

	header := []string{"product_id", "product_name", "brand", "l2_category", "l3_category", "functionality", "in_stock"}
	if opts.PriceColumn != "" {
		header = append(header, opts.PriceColumn)
	}
	products := [][]string{header}
	for _, pr := range in.Products {
		row := []string{pr.ID, pr.Name, pr.Brand, pr.L2, pr.L3, pr.Functional, strconv.FormatBool(pr.InStock)}
		if opts.PriceColumn != "" {
			price := ""
			if pr.Price.Known {
				price = strconv.FormatFloat(pr.Price.Value, 'f', 2, 64)
			}
			row = append(row, price)
		}
		products = append(products, row)
	}

	invoices := [][]string{{"customer_id", "product_id", "quantity", "invoice_date"}}
	for _, l := range in.Invoices {
		invoices = append(invoices, []string{
			l.CustomerID, l.ProductID,
			strconv.FormatFloat(l.Quantity, 'f', -1, 64),
			l.Date.Format(recommend.DateLayout),
		})
	}

	files := map[string][][]string{
		p.Customers: customers,
		p.Products:  products,
		p.Invoices:  invoices,
	}

	if !opts.OmitFeedback {
		feedback := [][]string{{"customer_id", "product_id", "rating", "sentiment", "reason_code", "feedback_date"}}
		for _, f := range in.Feedback.Records {
			date := ""
			if !f.Date.IsZero() {
				date = f.Date.Format(recommend.DateLayout)
			}
			feedback = append(feedback, []string{
				f.CustomerID, f.ProductID,
				f.Signal.Rating.String(), polarityLabel(f.Signal.Polarity), f.Signal.ReasonCode, date,
			})
		}
		files[p.Feedback] = feedback
	}

	for path, records := range files {
		if err := writeFile(path, records); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

func polarityLabel(p recommend.Polarity) string {
	switch p {
	case recommend.PolarityPositive:
		return "positive"
	case recommend.PolarityNegative:
		return "negative"
	default:
		return ""
	}
}

func writeFile(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
