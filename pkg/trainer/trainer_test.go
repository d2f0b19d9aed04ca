package trainer

import "testing"

func TestAssertLabelNotInFeaturesCatchesBug(t *testing.T) {
	if err := AssertLabelNotInFeatures(FeatureColumns); err != nil {
		t.Fatalf("FeatureColumns should not contain label column: %v", err)
	}
	polluted := append(append([]string{}, FeatureColumns...), LabelColumn)
	if err := AssertLabelNotInFeatures(polluted); err == nil {
		t.Fatalf("expected error when label column leaks into feature set")
	}
}

func TestPreprocessRawConvertsWeiAndRenames(t *testing.T) {
	raw := []Row{{
		"unique_receivers": 3,
		"unique_senders":   2,
		"total_out_volume": 2e18,
		"total_in_volume":  1e18,
	}}
	out := PreprocessRaw(raw)
	if out[0]["fan_out"] != 3 || out[0]["fan_in"] != 2 {
		t.Fatalf("rename failed: %+v", out[0])
	}
	if out[0]["total_out"] != 2 || out[0]["total_in"] != 1 {
		t.Fatalf("wei conversion failed: %+v", out[0])
	}
	for _, col := range FeatureColumns {
		if _, ok := out[0][col]; !ok {
			t.Fatalf("expected column %q to be filled with 0, missing", col)
		}
	}
}

func TestStage1ScoreIsFiniteAndDeterministic(t *testing.T) {
	rows := [][]float64{
		{1, 2, 3}, {1.1, 2.1, 3.1}, {0.9, 1.9, 2.9},
		{1.2, 2.0, 3.2}, {50, 50, 50}, {1.0, 2.05, 2.95},
	}
	model := FitStage1(rows)
	s1 := model.Score(rows[4])
	s2 := model.Score(rows[4])
	if s1 != s2 {
		t.Fatalf("expected deterministic score, got %v then %v", s1, s2)
	}

	enriched := model.EnrichWithAnomalyFeatures(rows)
	if len(enriched[0]) != len(rows[0])+2 {
		t.Fatalf("expected 2 appended anomaly columns, got %d extra", len(enriched[0])-len(rows[0]))
	}
}

func TestStratifiedSplitPreservesClassBalance(t *testing.T) {
	var rows []LabelledRow
	for i := 0; i < 40; i++ {
		label := 0
		if i%4 == 0 {
			label = 1
		}
		rows = append(rows, LabelledRow{Features: []float64{float64(i)}, Label: label})
	}
	train, test := StratifiedSplit(rows, 1)
	if len(train)+len(test) != len(rows) {
		t.Fatalf("split lost rows: train=%d test=%d total=%d", len(train), len(test), len(rows))
	}
	if len(test) == 0 || len(train) == 0 {
		t.Fatalf("expected non-empty train and test sets")
	}
}

func TestFitStage2ProducesBoundedProbabilities(t *testing.T) {
	var rows []LabelledRow
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			rows = append(rows, LabelledRow{Features: []float64{10, 10}, Label: 1})
		} else {
			rows = append(rows, LabelledRow{Features: []float64{0, 0}, Label: 0})
		}
	}
	model := FitStage2(rows)
	p := model.PredictProba([]float64{10, 10})
	if p < 0 || p > 1 {
		t.Fatalf("probability out of bounds: %v", p)
	}
	if model.Predict([]float64{10, 10}) != 1 {
		t.Fatalf("expected clearly positive row to predict class 1")
	}
	if model.Predict([]float64{0, 0}) != 0 {
		t.Fatalf("expected clearly negative row to predict class 0")
	}
}

func TestEvaluateMetricsAreWithinBounds(t *testing.T) {
	var train []LabelledRow
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			train = append(train, LabelledRow{Features: []float64{10, 10}, Label: 1})
		} else {
			train = append(train, LabelledRow{Features: []float64{0, 0}, Label: 0})
		}
	}
	model := FitStage2(train)
	metrics := Evaluate(model, train)

	if metrics.Accuracy < 0 || metrics.Accuracy > 1 {
		t.Fatalf("accuracy out of bounds: %v", metrics.Accuracy)
	}
	if metrics.Precision < 0 || metrics.Precision > 1 {
		t.Fatalf("precision out of bounds: %v", metrics.Precision)
	}
	if metrics.Recall < 0 || metrics.Recall > 1 {
		t.Fatalf("recall out of bounds: %v", metrics.Recall)
	}
	if metrics.ROCAUC < 0 || metrics.ROCAUC > 1 {
		t.Fatalf("ROC-AUC out of bounds: %v", metrics.ROCAUC)
	}
	sum := metrics.ConfusionMatrix[0][0] + metrics.ConfusionMatrix[0][1] +
		metrics.ConfusionMatrix[1][0] + metrics.ConfusionMatrix[1][1]
	if sum != len(train) {
		t.Fatalf("confusion matrix doesn't sum to sample count: %d vs %d", sum, len(train))
	}
}
