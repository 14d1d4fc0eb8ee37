// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package storage

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Published artifact file names.
const (
	FileBasketRows         = "basket_rows.csv"
	FileAssignments        = "cluster_assignments.csv"
	FileRules              = "association_rules.csv"
	FileRankedRecs         = "recommendations_ranked.csv"
	FileRecommendations    = "recommendations.csv"
	FileCalibrationSummary = "calibration_summary.json"
)

// WriteFileAtomic writes path through fn into a temporary file in the same
// directory and renames it into place. On any error the temporary file is
// removed and path is left untouched.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

// Artifact describes one published file.
type Artifact struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Bytes    int64  `json:"bytes"`
}

// Publisher writes stage outputs into one directory. Every write replaces
// the previous file atomically.
type Publisher struct {
	dir string
}

// NewPublisher creates dir if needed.
func NewPublisher(dir string) (*Publisher, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for output data
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Publisher{dir: dir}, nil
}

// Dir returns the output directory.
func (p *Publisher) Dir() string {
	return p.dir
}

type byteCounter struct {
	n int64
}

func (c *byteCounter) Write(b []byte) (int, error) {
	c.n += int64(len(b))
	return len(b), nil
}

func (p *Publisher) publish(ctx context.Context, name string, fn func(w io.Writer) error) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, name)
	h := sha256.New()
	counter := &byteCounter{}
	err := WriteFileAtomic(path, func(w io.Writer) error {
		return fn(io.MultiWriter(w, h, counter))
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{Path: path, Checksum: hex.EncodeToString(h.Sum(nil)), Bytes: counter.n}, nil
}

func (p *Publisher) publishCSV(ctx context.Context, name string, header []string, rows [][]string) (*Artifact, error) {
	return p.publish(ctx, name, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	})
}

// PublishJSON writes v as indented JSON.
func (p *Publisher) PublishJSON(ctx context.Context, name string, v interface{}) (*Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	return p.publish(ctx, name, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return err
		}
		_, err := w.Write([]byte("\n"))
		return err
	})
}

// PublishBasketRows writes the Basket Builder output.
func (p *Publisher) PublishBasketRows(ctx context.Context, rows []recommend.BasketRow) (*Artifact, error) {
	header := []string{
		"customer_id", "product_id", "segment", "region", "trade", "brand", "l2_category", "l3_category",
		"functional_tag", "purchase_frequency", "total_quantity", "total_spend", "last_purchase",
		"recency_days", "recency_score", "frequency_score", "monetary_score", "price_band",
	}
	out := make([][]string, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, []string{
			r.CustomerID, r.ProductID, r.Segment, r.Region, r.Trade, r.Brand, r.L2, r.L3,
			r.Functional, strconv.Itoa(r.PurchaseFrequency), formatFloat(r.TotalQuantity), formatPrice(r.TotalSpend),
			r.LastPurchase.Format(recommend.DateLayout), strconv.Itoa(r.RecencyDays),
			formatFloat(r.RecencyScore), formatFloat(r.FrequencyScore), formatFloat(r.MonetaryScore), r.PriceBand,
		})
	}
	return p.publishCSV(ctx, FileBasketRows, header, out)
}

// PublishAssignments writes the customer-to-cluster map.
func (p *Publisher) PublishAssignments(ctx context.Context, as []recommend.Assignment) (*Artifact, error) {
	out := make([][]string, 0, len(as))
	for _, a := range as {
		out = append(out, []string{a.CustomerID, a.Cluster.Segment, strconv.Itoa(a.Cluster.Index), a.Cluster.String()})
	}
	return p.publishCSV(ctx, FileAssignments, []string{"customer_id", "segment", "cluster", "cluster_id"}, out)
}

// PublishRules writes the association rules.
func (p *Publisher) PublishRules(ctx context.Context, rules []recommend.Rule) (*Artifact, error) {
	header := []string{
		"segment", "cluster_id", "product_a", "product_b", "pair_frequency", "freq_a", "freq_b",
		"total_baskets", "support", "confidence", "lift", "weighted_support",
	}
	out := make([][]string, 0, len(rules))
	for i := range rules {
		r := &rules[i]
		out = append(out, []string{
			r.Cluster.Segment, r.Cluster.String(), r.Antecedent, r.Consequent,
			strconv.Itoa(r.PairFrequency), strconv.Itoa(r.AntecedentFreq), strconv.Itoa(r.ConsequentFreq),
			strconv.Itoa(r.TotalBaskets), formatFloat(r.Support), formatFloat(r.Confidence),
			formatFloat(r.Lift), formatFloat(r.WeightedSupport),
		})
	}
	return p.publishCSV(ctx, FileRules, header, out)
}

// PublishRecommendations writes a recommendation set under name.
func (p *Publisher) PublishRecommendations(ctx context.Context, name string, recs []recommend.Recommendation) (*Artifact, error) {
	header := []string{
		"customer_id", "segment", "cluster_id", "rank", "recommended_product", "product_name", "brand",
		"l2_category", "l3_category", "trigger_product", "trigger_name", "support", "confidence", "lift",
		"score", "recommended_qty", "reason",
	}
	out := make([][]string, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		out = append(out, []string{
			r.CustomerID, r.Segment, r.Cluster.String(), strconv.Itoa(r.Rank), r.ProductID, r.ProductName, r.Brand,
			r.L2, r.L3, r.TriggerProductID, r.TriggerName, formatFloat(r.Support), formatFloat(r.Confidence),
			formatFloat(r.Lift), formatFloat(r.Score), strconv.Itoa(r.SuggestedQuantity), r.Reason,
		})
	}
	return p.publishCSV(ctx, name, header, out)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(p recommend.Price) string {
	if !p.Known {
		return ""
	}
	return formatFloat(p.Value)
}
