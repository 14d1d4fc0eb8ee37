// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"strconv"
	"strings"
	"time"
)

// UnknownValue replaces missing categorical attributes.
const UnknownValue = "Unknown"

// PriceBandUnknown is the price band assigned when no price data exists.
const PriceBandUnknown = "unknown"

// Price bands assigned by segment tertile.
const (
	PriceBandLow  = "Low"
	PriceBandMid  = "Mid"
	PriceBandHigh = "High"
)

// DateLayout is the calendar-date format of every tabular input and output.
const DateLayout = "2006-01-02"

// FallbackTrigger marks recommendations produced by the category-affinity path.
const FallbackTrigger = "fallback"

// Customer is a B2B account.
type Customer struct {
	ID     string `json:"customer_id" validate:"required"`
	Region string `json:"region"`
	Trade  string `json:"trade"`
}

// Segment returns the clustering partition key for the customer.
func (c Customer) Segment() string {
	return SegmentKey(c.Region, c.Trade)
}

// SegmentKey builds a segment identifier from region and trade.
// Empty parts are replaced with UnknownValue.
func SegmentKey(region, trade string) string {
	return OrUnknown(region) + "_" + OrUnknown(trade)
}

// OrUnknown returns s trimmed, or UnknownValue when s is blank.
func OrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownValue
	}
	return s
}

// Price is an optional unit price.
// The zero value is the absent variant.
type Price struct {
	Value float64
	Known bool
}

// KnownPrice returns a present price.
func KnownPrice(v float64) Price {
	return Price{Value: v, Known: true}
}

// NoPrice is the absent price variant.
var NoPrice = Price{}

// Product is a catalog entry.
type Product struct {
	ID         string `json:"product_id" validate:"required"`
	Name       string `json:"product_name"`
	Brand      string `json:"brand"`
	L2         string `json:"l2_category"`
	L3         string `json:"l3_category"`
	Functional string `json:"functional_tag"`
	InStock    bool   `json:"in_stock"`
	Price      Price  `json:"-"`
}

// InvoiceLine is a single immutable purchase fact.
type InvoiceLine struct {
	CustomerID string    `json:"customer_id" validate:"required"`
	ProductID  string    `json:"product_id" validate:"required"`
	Quantity   float64   `json:"quantity" validate:"gt=0"`
	Date       time.Time `json:"invoice_date" validate:"required"`
}

// Day returns the invoice date truncated to a calendar day in UTC.
func (l InvoiceLine) Day() time.Time {
	return TruncateDay(l.Date)
}

// TruncateDay returns t truncated to midnight UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// Inputs is the raw data set consumed by a pipeline run.
type Inputs struct {
	Customers []Customer
	Products  []Product
	Invoices  []InvoiceLine
	Feedback  FeedbackSource
}

// BasketRow is one surviving (customer, product) aggregate.
type BasketRow struct {
	CustomerID        string    `json:"customer_id"`
	ProductID         string    `json:"product_id"`
	Segment           string    `json:"segment"`
	Region            string    `json:"region"`
	Trade             string    `json:"trade"`
	Brand             string    `json:"brand"`
	L2                string    `json:"l2_category"`
	L3                string    `json:"l3_category"`
	Functional        string    `json:"functional_tag"`
	PurchaseFrequency int       `json:"purchase_frequency"`
	TotalQuantity     float64   `json:"total_quantity"`
	TotalSpend        Price     `json:"-"`
	LastPurchase      time.Time `json:"last_purchase"`
	RecencyDays       int       `json:"recency_days"`
	RecencyScore      float64   `json:"recency_score"`
	FrequencyScore    float64   `json:"frequency_score"`
	MonetaryScore     float64   `json:"monetary_score"`
	PriceBand         string    `json:"price_band"`
}

// ClusterKey identifies a cluster globally. Index is only unique within Segment.
type ClusterKey struct {
	Segment string
	Index   int
}

// String returns the global cluster identifier, e.g. "North_Plumbing_0".
func (k ClusterKey) String() string {
	return k.Segment + "_" + strconv.Itoa(k.Index)
}

// Assignment maps a customer to its cluster.
type Assignment struct {
	CustomerID string
	Cluster    ClusterKey
}

// Rule is a directed association A -> B scoped to one cluster.
type Rule struct {
	Cluster         ClusterKey
	Antecedent      string
	Consequent      string
	PairFrequency   int
	AntecedentFreq  int
	ConsequentFreq  int
	TotalBaskets    int
	Support         float64
	Confidence      float64
	Lift            float64
	WeightedSupport float64
}

// Recommendation is one ranked output row.
type Recommendation struct {
	CustomerID        string
	Segment           string
	Cluster           ClusterKey
	Rank              int
	ProductID         string
	ProductName       string
	Brand             string
	L2                string
	L3                string
	TriggerProductID  string
	TriggerName       string
	Support           float64
	Confidence        float64
	Lift              float64
	Score             float64
	SuggestedQuantity int
	Reason            string
}

// IsFallback reports whether the row came from the category-affinity path.
func (r *Recommendation) IsFallback() bool {
	return r.TriggerProductID == FallbackTrigger
}
