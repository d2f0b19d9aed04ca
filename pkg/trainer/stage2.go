package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	stage2Trees    = 200
	stage2Seed     = 42
	stage2TestFrac = 0.2
)

// LabelledRow pairs a full feature vector (FeatureColumns + AnomalyColumns)
// with the binary supervised label.
type LabelledRow struct {
	Features []float64
	Label    int
}

// decisionStump is a single weak classifier: threshold split on one
// feature, majority vote on each side. A bag of these, each trained on
// a bootstrap resample with a random feature subset, stands in for the
// tree-ensemble classifier spec.md §4.13 calls for (no ecosystem
// tree-ensemble library exists in the retrieved corpus).
type decisionStump struct {
	feature    int
	threshold  float64
	leftLabel  int
	rightLabel int
	weight     float64
}

// Stage2Model is the fitted class-balanced stump ensemble.
type Stage2Model struct {
	stumps []decisionStump
}

// FitStage2 trains the classifier on enriched feature rows
// (FeatureColumns+AnomalyColumns) against the label column, applying
// class-balanced bootstrap sampling per bag (ml/train_rf.py
// RandomForestClassifier(class_weight="balanced") equivalent).
func FitStage2(rows []LabelledRow) *Stage2Model {
	rng := rand.New(rand.NewSource(stage2Seed))

	var positives, negatives []LabelledRow
	for _, r := range rows {
		if r.Label == 1 {
			positives = append(positives, r)
		} else {
			negatives = append(negatives, r)
		}
	}
	if len(positives) == 0 || len(negatives) == 0 {
		return &Stage2Model{}
	}

	dim := len(rows[0].Features)
	model := &Stage2Model{}
	for t := 0; t < stage2Trees; t++ {
		bag := balancedBootstrap(rng, positives, negatives)
		feat := rng.Intn(dim)
		model.stumps = append(model.stumps, fitStump(bag, feat))
	}
	return model
}

func balancedBootstrap(rng *rand.Rand, positives, negatives []LabelledRow) []LabelledRow {
	n := minInt(len(positives), len(negatives))
	bag := make([]LabelledRow, 0, 2*n)
	for i := 0; i < n; i++ {
		bag = append(bag, positives[rng.Intn(len(positives))])
		bag = append(bag, negatives[rng.Intn(len(negatives))])
	}
	return bag
}

func fitStump(rows []LabelledRow, feature int) decisionStump {
	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.Features[feature]
	}
	sort.Float64s(values)
	threshold := values[len(values)/2]

	var leftPos, leftNeg, rightPos, rightNeg int
	for _, r := range rows {
		if r.Features[feature] < threshold {
			if r.Label == 1 {
				leftPos++
			} else {
				leftNeg++
			}
		} else {
			if r.Label == 1 {
				rightPos++
			} else {
				rightNeg++
			}
		}
	}
	leftLabel, rightLabel := 0, 0
	if leftPos > leftNeg {
		leftLabel = 1
	}
	if rightPos > rightNeg {
		rightLabel = 1
	}
	return decisionStump{feature: feature, threshold: threshold, leftLabel: leftLabel, rightLabel: rightLabel, weight: 1}
}

// PredictProba returns the fraction of stumps voting for class 1.
func (m *Stage2Model) PredictProba(row []float64) float64 {
	if len(m.stumps) == 0 {
		return 0
	}
	var votes float64
	for _, s := range m.stumps {
		var label int
		if row[s.feature] < s.threshold {
			label = s.leftLabel
		} else {
			label = s.rightLabel
		}
		votes += float64(label) * s.weight
	}
	return votes / float64(len(m.stumps))
}

// Predict applies a 0.5 decision boundary.
func (m *Stage2Model) Predict(row []float64) int {
	if m.PredictProba(row) >= 0.5 {
		return 1
	}
	return 0
}

// StratifiedSplit performs an 80/20 split preserving each class's
// proportion (ml/train_rf.py train_test_split(..., stratify=y)).
func StratifiedSplit(rows []LabelledRow, seed int64) (train, test []LabelledRow) {
	rng := rand.New(rand.NewSource(seed))

	var positives, negatives []LabelledRow
	for _, r := range rows {
		if r.Label == 1 {
			positives = append(positives, r)
		} else {
			negatives = append(negatives, r)
		}
	}
	shuffle(rng, positives)
	shuffle(rng, negatives)

	splitClass := func(class []LabelledRow) (tr, te []LabelledRow) {
		testN := int(math.Round(float64(len(class)) * stage2TestFrac))
		return class[testN:], class[:testN]
	}

	posTrain, posTest := splitClass(positives)
	negTrain, negTest := splitClass(negatives)

	train = append(append([]LabelledRow{}, posTrain...), negTrain...)
	test = append(append([]LabelledRow{}, posTest...), negTest...)
	shuffle(rng, train)
	shuffle(rng, test)
	return train, test
}

func shuffle(rng *rand.Rand, rows []LabelledRow) {
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
}

// Metrics holds the evaluation outcome spec.md §4.13 requires.
type Metrics struct {
	Accuracy         float64
	Precision        float64
	Recall           float64
	ROCAUC           float64
	ConfusionMatrix  [2][2]int // [actual][predicted]
	FeatureImportance map[int]float64
}

// Evaluate scores the model against a held-out test set.
func Evaluate(model *Stage2Model, test []LabelledRow) Metrics {
	var tp, tn, fp, fn int
	var scores []float64
	var labels []int
	for _, r := range test {
		pred := model.Predict(r.Features)
		scores = append(scores, model.PredictProba(r.Features))
		labels = append(labels, r.Label)
		switch {
		case r.Label == 1 && pred == 1:
			tp++
		case r.Label == 0 && pred == 0:
			tn++
		case r.Label == 0 && pred == 1:
			fp++
		case r.Label == 1 && pred == 0:
			fn++
		}
	}

	total := tp + tn + fp + fn
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(tp+tn) / float64(total)
	}
	precision := 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}

	return Metrics{
		Accuracy:        accuracy,
		Precision:       precision,
		Recall:          recall,
		ROCAUC:          rocAUC(scores, labels),
		ConfusionMatrix: [2][2]int{{tn, fp}, {fn, tp}},
		FeatureImportance: featureImportance(model),
	}
}

// rocAUC computes the AUC via the Mann-Whitney U statistic over
// predicted scores, avoiding a full ROC-curve sweep.
func rocAUC(scores []float64, labels []int) float64 {
	type pair struct {
		score float64
		label int
	}
	pairs := make([]pair, len(scores))
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	var rankSum float64
	var positives int
	for i, p := range pairs {
		rank := float64(i + 1)
		if p.label == 1 {
			rankSum += rank
			positives++
		}
	}
	negatives := len(pairs) - positives
	if positives == 0 || negatives == 0 {
		return 0.5
	}
	return (rankSum - float64(positives*(positives+1))/2) / float64(positives*negatives)
}

func featureImportance(model *Stage2Model) map[int]float64 {
	counts := make(map[int]float64)
	for _, s := range model.stumps {
		counts[s.feature]++
	}
	total := float64(len(model.stumps))
	if total == 0 {
		return counts
	}
	for f := range counts {
		counts[f] /= total
	}
	return counts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AssertLabelNotInFeatures enforces spec.md §4.13's invariant that the
// label column is never present among training features, mirroring
// ml/train_rf.py's explicit `assert LABEL_COLUMN not in feature_cols`.
func AssertLabelNotInFeatures(columns []string) error {
	for _, c := range columns {
		if c == LabelColumn {
			return fmt.Errorf("bug: label column %q must not be in the feature set", LabelColumn)
		}
	}
	return nil
}
