// Package temporal implements the Temporal Detector (spec.md §4.7):
// daily bucketing of a target's transactions with zero-filled gaps,
// followed by rolling z-score, CUSUM, EMA-crossover and burst analysis
// on the tx_count and volume series.
package temporal

import (
	"math"
	"sort"
	"time"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

const (
	zscoreWindow     = 7
	zThresholdCount  = 2.5
	zThresholdVolume = 2.0

	cusumDrift          = 0.5
	cusumThresholdCount = 5.0
	cusumThresholdVol   = 4.0

	emaShortSpan = 3
	emaLongSpan  = 10

	burstGapSeconds = 300
)

// DayBucket is one UTC-day aggregate of the target's activity.
type DayBucket struct {
	Day                 string
	TxCount             float64
	Volume              float64
	InCount             float64
	OutCount            float64
	UniqueCounterparties int
}

// ZAnomaly is a single rolling z-score exceedance.
type ZAnomaly struct {
	Day     string
	Series  string // "tx_count" or "volume"
	Z       float64
	Kind    string // "spike" or "drop"
}

// ChangePoint is a single CUSUM detection.
type ChangePoint struct {
	Day    string
	Series string
	Kind   string // "increase" or "decrease"
}

// RegimeShift is a sign-change of ema_short-ema_long.
type RegimeShift struct {
	Day    string
	Series string
}

// BurstStats summarises consecutive-gap clustering.
type BurstStats struct {
	Count        int
	LongestStreak int
	MeanGapSeconds float64
	Percent      float64
}

// Result is the full temporal-analysis outcome.
type Result struct {
	Buckets       []DayBucket
	ZAnomalies    []ZAnomaly
	ChangePoints  []ChangePoint
	RegimeShifts  []RegimeShift
	Bursts        BurstStats
	CompositeScore float64
}

// Analyze buckets txns by UTC day with zero-filled gaps and runs the
// four detectors spec.md §4.7 defines. target identifies which side of
// each transaction counts toward in_count vs out_count.
func Analyze(target chain.Address, txns []fetchadapter.Transaction) Result {
	buckets := bucketByDay(target, txns)

	countSeries := make([]float64, len(buckets))
	volumeSeries := make([]float64, len(buckets))
	days := make([]string, len(buckets))
	for i, b := range buckets {
		countSeries[i] = b.TxCount
		volumeSeries[i] = b.Volume
		days[i] = b.Day
	}

	zAnoms := append(
		rollingZScore(days, countSeries, "tx_count", zThresholdCount),
		rollingZScore(days, volumeSeries, "volume", zThresholdVolume)...,
	)
	cps := append(
		cusum(days, countSeries, "tx_count", cusumThresholdCount),
		cusum(days, volumeSeries, "volume", cusumThresholdVol)...,
	)
	shifts := append(
		emaCrossovers(days, countSeries, "tx_count"),
		emaCrossovers(days, volumeSeries, "volume")...,
	)
	bursts := burstAnalysis(txns)

	score := compositeScore(zAnoms, cps, shifts, bursts)

	return Result{
		Buckets:        buckets,
		ZAnomalies:     zAnoms,
		ChangePoints:   cps,
		RegimeShifts:   shifts,
		Bursts:         bursts,
		CompositeScore: score,
	}
}

func dayKeyUTC(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// bucketByDay aggregates transactions per UTC day and zero-fills every
// calendar day between the first and last observed day (spec.md §4.7:
// "zero-filled gaps" read literally as true calendar-day zero fill).
func bucketByDay(target chain.Address, txns []fetchadapter.Transaction) []DayBucket {
	if len(txns) == 0 {
		return nil
	}

	type agg struct {
		txCount      float64
		volume       float64
		inCount      float64
		outCount     float64
		counterparties map[string]struct{}
	}

	byDay := make(map[string]*agg)
	var minTs, maxTs int64
	first := true
	for _, tx := range txns {
		key := dayKeyUTC(tx.Timestamp)
		a, ok := byDay[key]
		if !ok {
			a = &agg{counterparties: make(map[string]struct{})}
			byDay[key] = a
		}
		a.txCount++
		a.volume += tx.ValueEth()
		if tx.From == target {
			a.outCount++
			a.counterparties[tx.To.String()] = struct{}{}
		}
		if tx.To == target {
			a.inCount++
			a.counterparties[tx.From.String()] = struct{}{}
		}

		if first || tx.Timestamp < minTs {
			minTs = tx.Timestamp
		}
		if first || tx.Timestamp > maxTs {
			maxTs = tx.Timestamp
		}
		first = false
	}

	start := time.Unix(minTs, 0).UTC().Truncate(24 * time.Hour)
	end := time.Unix(maxTs, 0).UTC().Truncate(24 * time.Hour)

	var out []DayBucket
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if a, ok := byDay[key]; ok {
			out = append(out, DayBucket{
				Day:                  key,
				TxCount:              a.txCount,
				Volume:               a.volume,
				InCount:              a.inCount,
				OutCount:             a.outCount,
				UniqueCounterparties: len(a.counterparties),
			})

		} else {
			out = append(out, DayBucket{Day: key})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func rollingZScore(days []string, series []float64, name string, threshold float64) []ZAnomaly {
	var anomalies []ZAnomaly
	for i := zscoreWindow; i < len(series); i++ {
		window := series[i-zscoreWindow : i]
		m := mean(window)
		sd := stddev(window, m)
		if sd < 1e-9 {
			continue
		}
		z := (series[i] - m) / sd
		if math.Abs(z) >= threshold {
			kind := "spike"
			if z < 0 {
				kind = "drop"
			}
			anomalies = append(anomalies, ZAnomaly{Day: days[i], Series: name, Z: z, Kind: kind})
		}
	}
	return anomalies
}

func cusum(days []string, series []float64, name string, threshold float64) []ChangePoint {
	if len(series) == 0 {
		return nil
	}
	m := mean(series)
	sd := stddev(series, m)
	if sd < 1e-9 {
		return nil
	}

	var cpos, cneg float64
	var out []ChangePoint
	for i, v := range series {
		dev := (v - m) / sd
		cpos = math.Max(0, cpos+dev-cusumDrift)
		cneg = math.Min(0, cneg+dev+cusumDrift)
		switch {
		case cpos > threshold:
			out = append(out, ChangePoint{Day: days[i], Series: name, Kind: "increase"})
			cpos = 0
		case cneg < -threshold:
			out = append(out, ChangePoint{Day: days[i], Series: name, Kind: "decrease"})
			cneg = 0
		}
	}
	return out
}

func ema(series []float64, span int) []float64 {
	out := make([]float64, len(series))
	alpha := 2.0 / (float64(span) + 1.0)
	for i, v := range series {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

func emaCrossovers(days []string, series []float64, name string) []RegimeShift {
	if len(series) < 2 {
		return nil
	}
	short := ema(series, emaShortSpan)
	long := ema(series, emaLongSpan)

	var out []RegimeShift
	prevSign := sign(short[0] - long[0])
	for i := 1; i < len(series); i++ {
		s := sign(short[i] - long[i])
		if s != 0 && s != prevSign && prevSign != 0 {
			out = append(out, RegimeShift{Day: days[i], Series: name})
		}
		if s != 0 {
			prevSign = s
		}
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// burstAnalysis flags consecutive transaction-pair gaps under
// burstGapSeconds, reporting count, longest streak, mean gap and
// percent of all gaps that qualify (spec.md §4.7).
func burstAnalysis(txns []fetchadapter.Transaction) BurstStats {
	if len(txns) < 2 {
		return BurstStats{}
	}
	sorted := append([]fetchadapter.Transaction(nil), txns...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, float64(sorted[i].Timestamp-sorted[i-1].Timestamp))
	}

	var burstGaps []float64
	count, longest, streak := 0, 0, 0
	for _, g := range gaps {
		if g < burstGapSeconds {
			count++
			streak++
			burstGaps = append(burstGaps, g)
			if streak > longest {
				longest = streak
			}
		} else {
			streak = 0
		}
	}

	return BurstStats{
		Count:          count,
		LongestStreak:  longest,
		MeanGapSeconds: mean(burstGaps),
		Percent:        100 * float64(count) / float64(len(gaps)),
	}
}

// compositeScore combines the four detectors per spec.md §4.7's rule
// bank into a single capped 0-100 temporal_risk.
func compositeScore(zAnoms []ZAnomaly, cps []ChangePoint, shifts []RegimeShift, bursts BurstStats) float64 {
	var countZ, volumeZ int
	for _, z := range zAnoms {
		if z.Series == "tx_count" {
			countZ++
		} else {
			volumeZ++
		}
	}

	score := math.Min(5*float64(countZ), 25)
	score += math.Min(5*float64(volumeZ), 20)
	score += math.Min(8*float64(len(cps)), 20)
	score += math.Min(5*float64(len(shifts)), 15)

	switch {
	case bursts.Percent > 50:
		score += 20
	case bursts.Percent > 25:
		score += 12
	case bursts.Percent > 10:
		score += 6
	}

	return coerce(clamp(score, 0, 100))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// coerce implements invariant I5: non-finite values collapse to 0.
func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
