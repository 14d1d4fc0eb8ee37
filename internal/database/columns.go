// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package database

import (
	"strconv"
	"strings"
	"time"
)

// PriceAliases are the accepted product price column names, in priority order.
var PriceAliases = []string{"unit_price", "price", "list_price", "unit_cost", "sale_price"}

// column is one selected output column. Names lists accepted source column
// names in priority order. Columns sharing a non-empty AnyOf group are
// jointly required: at least one of them must be present.
type column struct {
	Names    []string
	Required bool
	AnyOf    string
}

var (
	customerColumns = []column{
		{Names: []string{"customer_id"}, Required: true},
		{Names: []string{"region"}},
		{Names: []string{"end_use", "trade"}},
	}

	productColumns = []column{
		{Names: []string{"product_id"}, Required: true},
		{Names: []string{"product_name", "name"}},
		{Names: []string{"brand"}},
		{Names: []string{"l2_category"}},
		{Names: []string{"l3_category"}},
		{Names: []string{"functionality", "functional_tag"}},
		{Names: []string{"in_stock"}},
		{Names: PriceAliases},
	}

	invoiceColumns = []column{
		{Names: []string{"customer_id"}, Required: true},
		{Names: []string{"product_id"}, Required: true},
		{Names: []string{"quantity"}, Required: true},
		{Names: []string{"invoice_date"}, Required: true},
	}

	feedbackColumns = []column{
		{Names: []string{"customer_id"}, Required: true},
		{Names: []string{"product_id"}, Required: true},
		{Names: []string{"rating"}, AnyOf: "signal"},
		{Names: []string{"reason_code"}, AnyOf: "signal"},
		{Names: []string{"sentiment"}, AnyOf: "signal"},
		{Names: []string{"feedback_date"}},
	}
)

// resolve picks the first present name of c from available. Matching is
// case-insensitive and ignores surrounding whitespace.
func (c column) resolve(available map[string]string) (string, bool) {
	for _, n := range c.Names {
		if actual, ok := available[n]; ok {
			return actual, true
		}
	}
	return "", false
}

func columnIndex(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if _, dup := out[key]; !dup {
			out[key] = n
		}
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07",
	"2006/01/02",
}

// parseDate returns the zero time for blank or unparseable input.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseFloat returns 0 and false for blank or unparseable input.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseBool accepts true/false, yes/no, y/n and 1/0. Anything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true
	default:
		return false
	}
}
