// Package trainer implements the Supervised Trainer (spec.md §4.13): a
// two-stage contract (isolation-based unsupervised fit, then a
// tree-ensemble classifier over features enriched with the first
// stage's anomaly_score/anomaly_flag), grounded directly in the
// original ml/train_iforest.py + ml/train_rf.py column contracts.
package trainer

import "math"

// FeatureColumns is the pipeline-standard column set both stages train
// against (ml/features.py FEATURE_COLUMNS, verbatim order).
var FeatureColumns = []string{
	"fan_out", "fan_in", "total_out", "total_in", "total_volume",
	"out_tx_count", "in_tx_count", "total_tx_count", "lifetime_seconds",
	"tx_frequency", "counterparty_ratio", "out_in_volume_ratio", "pass_through_ratio",
}

// RawToFeatureMap renames raw BigQuery-export columns to
// FeatureColumns names where they differ (ml/features.py
// RAW_TO_FEATURE_MAP).
var RawToFeatureMap = map[string]string{
	"unique_receivers": "fan_out",
	"unique_senders":   "fan_in",
	"total_out_volume": "total_out",
	"total_in_volume":  "total_in",
}

// WeiColumns lists raw columns whose values are in wei and must be
// divided by 1e18 before use (ml/features.py WEI_COLUMNS).
var WeiColumns = []string{"total_out_volume", "total_in_volume", "total_volume"}

// AnomalyColumns are the two columns stage 1 appends before stage 2
// trains (ml/features.py ANOMALY_COLUMNS).
var AnomalyColumns = []string{"anomaly_score", "anomaly_flag"}

const (
	// LabelColumn is the supervised target column name. It must never
	// appear among stage 2's training features (spec.md §4.13
	// invariant).
	LabelColumn = "label"

	// AnomalyThreshold is the decision_function cutoff below which a
	// row is flagged anomalous (ml/features.py ANOMALY_THRESHOLD).
	AnomalyThreshold = 0.0
)

// Row is one raw wallet record as read from a CSV, keyed by column
// name exactly as it appears in the source file (raw or
// pipeline-standard).
type Row map[string]float64

// PreprocessRaw converts a batch of raw BigQuery-export rows into
// pipeline-standard rows: wei columns divided by 1e18, then renamed
// per RawToFeatureMap, with missing FeatureColumns filled to 0
// (ml/train_iforest.py preprocess_raw_csv, steps 1-3).
func PreprocessRaw(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, raw := range rows {
		converted := make(Row, len(raw))
		for k, v := range raw {
			converted[k] = v
		}
		for _, col := range WeiColumns {
			if v, ok := converted[col]; ok {
				converted[col] = v / 1e18
			}
		}
		renamed := make(Row, len(converted))
		for k, v := range converted {
			if newName, ok := RawToFeatureMap[k]; ok {
				renamed[newName] = v
			} else {
				renamed[k] = v
			}
		}
		for _, col := range FeatureColumns {
			if _, ok := renamed[col]; !ok {
				renamed[col] = 0
			}
		}
		out[i] = renamed
	}
	return out
}

// ToMatrix extracts FeatureColumns (optionally plus extra columns, for
// stage 2's anomaly-enriched feature set) from rows into a dense
// row-major matrix, coercing non-finite values to 0 (spec.md I5).
func ToMatrix(rows []Row, columns []string) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, len(columns))
		for j, col := range columns {
			vec[j] = coerce(r[col])
		}
		out[i] = vec
	}
	return out
}

func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
