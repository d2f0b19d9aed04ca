// Package features implements the Feature Extractor (spec.md §4.3):
// a fixed 33-slot FeatureVector computed from a target address and its
// transaction list. The column order below is normative — it is
// transcribed directly from spec.md's GLOSSARY "Feature index map" and
// is exercised identically by the Outlier Detector and Graph Scorer.
package features

import (
	"math"
	"sort"
	"time"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

// Dimension is the fixed FeatureVector length (spec.md §3).
const Dimension = 33

// Columns gives the normative name of every slot, in order. Index
// positions are part of the contract — never reorder this slice.
var Columns = [Dimension]string{
	"tx_count", "sent_count", "recv_count", "total_sent_eth", "total_recv_eth",
	"net_flow_eth", "flow_ratio", "mean_value", "median_value", "std_value",
	"max_value", "min_value", "mean_sent", "mean_recv", "unique_counterparties",
	"unique_targets", "unique_sources", "repeated_targets", "self_transfers",
	"active_days", "lifespan_days", "mean_time_between_tx", "std_time_between_tx",
	"min_time_between_tx", "burst_ratio", "mean_gas_price", "std_gas_price",
	"mean_gas_used", "contract_call_ratio", "failed_tx_ratio", "round_value_ratio",
	"tx_per_day", "value_per_counterparty",
}

// Index constants name each slot so calling code never hardcodes magic
// numbers.
const (
	IdxTxCount = iota
	IdxSentCount
	IdxRecvCount
	IdxTotalSentEth
	IdxTotalRecvEth
	IdxNetFlowEth
	IdxFlowRatio
	IdxMeanValue
	IdxMedianValue
	IdxStdValue
	IdxMaxValue
	IdxMinValue
	IdxMeanSent
	IdxMeanRecv
	IdxUniqueCounterparties
	IdxUniqueTargets
	IdxUniqueSources
	IdxRepeatedTargets
	IdxSelfTransfers
	IdxActiveDays
	IdxLifespanDays
	IdxMeanTimeBetweenTx
	IdxStdTimeBetweenTx
	IdxMinTimeBetweenTx
	IdxBurstRatio
	IdxMeanGasPrice
	IdxStdGasPrice
	IdxMeanGasUsed
	IdxContractCallRatio
	IdxFailedTxRatio
	IdxRoundValueRatio
	IdxTxPerDay
	IdxValuePerCounterparty
)

// Vector is the fixed-order 33-scalar feature vector.
type Vector [Dimension]float64

// Get retrieves a slot and coerces any NaN/Inf to 0 (spec.md §3 I5).
func (v Vector) Get(idx int) float64 { return coerce(v[idx]) }

// Extract computes the FeatureVector for address over txns (spec.md
// §4.3). Any non-finite intermediate result coerces to 0.
func Extract(address chain.Address, txns []fetchadapter.Transaction) Vector {
	var v Vector
	if len(txns) == 0 {
		return v
	}

	var (
		sentCount, recvCount   int
		totalSent, totalRecv   float64
		values                 []float64
		sentValues, recvValues []float64
		targets                = map[chain.Address]int{}
		sources                = map[chain.Address]int{}
		selfTransfers          int
		dayKeys                = map[string]bool{}
		timestamps             []int64
		gasPrices              []float64
		gasUsed                []float64
		contractCalls          int
		failedTx               int
		roundValues            int
	)

	for _, tx := range txns {
		val := tx.ValueEth()
		values = append(values, val)
		timestamps = append(timestamps, tx.Timestamp)
		dayKeys[dayKey(tx.Timestamp)] = true
		gasPrices = append(gasPrices, tx.GasPriceGwei())
		gasUsed = append(gasUsed, tx.GasUsed)

		if tx.From == address && tx.To == address {
			selfTransfers++
		}
		if tx.From == address {
			sentCount++
			totalSent += val
			sentValues = append(sentValues, val)
			if tx.To != "" && tx.To != address {
				targets[tx.To]++
			}
		}
		if tx.To == address {
			recvCount++
			totalRecv += val
			recvValues = append(recvValues, val)
			if tx.From != "" && tx.From != address {
				sources[tx.From]++
			}
		}
		if len(tx.Input) > 10 { // longer than "0x"+4-byte selector (10 chars)
			contractCalls++
		}
		if tx.IsError || tx.ReceiptStatus == "0" {
			failedTx++
		}
		if isRoundValue(val) {
			roundValues++
		}
	}

	n := float64(len(txns))
	counterparties := map[chain.Address]bool{}
	for k := range targets {
		counterparties[k] = true
	}
	for k := range sources {
		counterparties[k] = true
	}
	repeatedTargets := 0
	for _, c := range targets {
		if c >= 3 {
			repeatedTargets++
		}
	}

	sort.Int64s(timestamps)
	gaps := consecutiveGaps(timestamps)

	v[IdxTxCount] = n
	v[IdxSentCount] = float64(sentCount)
	v[IdxRecvCount] = float64(recvCount)
	v[IdxTotalSentEth] = totalSent
	v[IdxTotalRecvEth] = totalRecv
	v[IdxNetFlowEth] = totalRecv - totalSent
	v[IdxFlowRatio] = math.Min(totalSent/math.Max(totalRecv, 1e-9), 100)
	v[IdxMeanValue] = mean(values)
	v[IdxMedianValue] = median(values)
	v[IdxStdValue] = stddev(values)
	v[IdxMaxValue] = maxOf(values)
	v[IdxMinValue] = minOf(values)
	v[IdxMeanSent] = mean(sentValues)
	v[IdxMeanRecv] = mean(recvValues)
	v[IdxUniqueCounterparties] = float64(len(counterparties))
	v[IdxUniqueTargets] = float64(len(targets))
	v[IdxUniqueSources] = float64(len(sources))
	v[IdxRepeatedTargets] = float64(repeatedTargets)
	v[IdxSelfTransfers] = float64(selfTransfers)
	v[IdxActiveDays] = float64(len(dayKeys))

	lifespanDays := 0.0
	if len(timestamps) > 0 {
		lifespanDays = float64(timestamps[len(timestamps)-1]-timestamps[0]) / 86400.0
	}
	v[IdxLifespanDays] = lifespanDays
	v[IdxMeanTimeBetweenTx] = mean(gaps)
	v[IdxStdTimeBetweenTx] = stddev(gaps)
	v[IdxMinTimeBetweenTx] = minOf(gaps)
	v[IdxBurstRatio] = burstRatio(gaps)
	v[IdxMeanGasPrice] = mean(gasPrices)
	v[IdxStdGasPrice] = stddev(gasPrices)
	v[IdxMeanGasUsed] = mean(gasUsed)
	v[IdxContractCallRatio] = float64(contractCalls) / n
	v[IdxFailedTxRatio] = float64(failedTx) / n
	v[IdxRoundValueRatio] = float64(roundValues) / n
	v[IdxTxPerDay] = n / math.Max(lifespanDays, 1)
	v[IdxValuePerCounterparty] = (totalSent + totalRecv) / math.Max(float64(len(counterparties)), 1)

	for i := range v {
		v[i] = coerce(v[i])
	}
	return v
}

func dayKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func isRoundValue(v float64) bool {
	return v == math.Floor(v) || (v*10) == math.Floor(v*10)
}

func consecutiveGaps(sortedTimestamps []int64) []float64 {
	if len(sortedTimestamps) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(sortedTimestamps)-1)
	for i := 1; i < len(sortedTimestamps); i++ {
		gaps = append(gaps, float64(sortedTimestamps[i]-sortedTimestamps[i-1]))
	}
	return gaps
}

func burstRatio(gaps []float64) float64 {
	if len(gaps) == 0 {
		return 0
	}
	burst := 0
	for _, g := range gaps {
		if g < 300 {
			burst++
		}
	}
	return float64(burst) / float64(len(gaps))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// coerce enforces invariant I5: non-finite values become 0.
func coerce(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
