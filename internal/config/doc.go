// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package config loads basketgraph configuration with koanf.
//
// Sources, lowest to highest precedence:
//
//  1. Built-in defaults (structs provider)
//  2. Optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
//     /etc/basketgraph/config.yaml
//  3. Environment variables listed in the mapping table
//
// Example config.yaml:
//
//	inputs:
//	  customers: data/customers.csv
//	  products: data/products.csv
//	  invoices: data/invoices.csv
//	  feedback: data/feedback.csv
//	output:
//	  dir: output
//	recommend:
//	  seed: 42
//	  ranking:
//	    top_k: 5
//	    weights: {confidence: 0.45, support: 0.2, lift: 0.2, recency: 0.15}
//	  cluster:
//	    feature_groups: [l2, brand, engagement]
//	schedule:
//	  interval: 24h
//	  run_on_start: true
//
// Environment variables use flat names, for example RECOMMEND_TOP_K=10,
// RECOMMEND_FEATURE_GROUPS=l2,brand or DUCKDB_PATH=/data/erp.duckdb.
// Unlisted variables are ignored.
//
// Every validation failure wraps recommend.ErrConfiguration, so a bad
// configuration is rejected before any stage runs.
package config
