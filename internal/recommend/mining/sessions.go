// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package mining

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Session is one reconstructed purchase event.
type Session struct {
	// ID is unique across the data set: "<customer>_<n>", n starting at 1.
	ID         string
	CustomerID string

	// Date is the newest line date in the session.
	Date time.Time

	// Products is sorted and de-duplicated.
	Products []string
}

// BuildSessions groups each customer's lines into sessions. A line more than
// windowDays after the previous line of the same customer opens a new
// session. Output is ordered by customer, then session number.
func BuildSessions(lines []recommend.InvoiceLine, windowDays int) []Session {
	byCustomer := groupByCustomer(lines)
	window := time.Duration(windowDays) * 24 * time.Hour

	var sessions []Session
	for _, id := range recommend.SortedKeys(byCustomer) {
		items := byCustomer[id]

		counter := 0
		var cur *Session
		var products map[string]struct{}
		var prev time.Time

		flush := func() {
			if cur == nil {
				return
			}
			cur.Products = sortedSet(products)
			sessions = append(sessions, *cur)
		}

		for _, l := range items {
			day := l.Day()
			if cur == nil || day.Sub(prev) > window {
				flush()
				counter++
				cur = &Session{ID: id + "_" + strconv.Itoa(counter), CustomerID: id}
				products = make(map[string]struct{})
			}
			products[l.ProductID] = struct{}{}
			if day.After(cur.Date) {
				cur.Date = day
			}
			prev = day
		}
		flush()
	}
	return sessions
}

// AutoWindow derives the session window from purchase rhythm: the median over
// customers of each customer's median gap between distinct purchase dates,
// rounded and clamped to [minDays, maxDays]. With no customer having two
// purchase dates it returns defaultDays.
func AutoWindow(lines []recommend.InvoiceLine, minDays, maxDays, defaultDays int) int {
	byCustomer := groupByCustomer(lines)

	var medians []float64
	for _, items := range byCustomer {
		var gaps []float64
		var prev time.Time
		for i, l := range items {
			day := l.Day()
			if i > 0 {
				if day.Equal(prev) {
					continue
				}
				gaps = append(gaps, float64(recommend.DaysBetween(prev, day)))
			}
			prev = day
		}
		if len(gaps) > 0 {
			medians = append(medians, recommend.Median(gaps))
		}
	}

	if len(medians) == 0 {
		return defaultDays
	}

	w := int(math.Round(recommend.Median(medians)))
	if w < minDays {
		w = minDays
	}
	if w > maxDays {
		w = maxDays
	}
	return w
}

// groupByCustomer returns each customer's lines sorted by date then product.
func groupByCustomer(lines []recommend.InvoiceLine) map[string][]recommend.InvoiceLine {
	out := make(map[string][]recommend.InvoiceLine)
	for _, l := range lines {
		out[l.CustomerID] = append(out[l.CustomerID], l)
	}
	for _, items := range out {
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].Date.Equal(items[j].Date) {
				return items[i].Date.Before(items[j].Date)
			}
			return items[i].ProductID < items[j].ProductID
		})
	}
	return out
}

func sortedSet(m map[string]struct{}) []string {
	return recommend.SortedKeys(m)
}
