package outlier

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/features"
)

func TestScoreIsWithinBounds(t *testing.T) {
	d := New()
	var target features.Vector
	target[features.IdxTxCount] = 500
	target[features.IdxBurstRatio] = 1.0

	neighbours := []features.Vector{{}, {}, {}}
	for i := range neighbours {
		neighbours[i][features.IdxTxCount] = 5
	}

	res := d.Score(target, neighbours)
	if res.MLScore < 0 || res.MLScore > 100 {
		t.Fatalf("ml score out of bounds: %v", res.MLScore)
	}
}

func TestScorePadsSmallMatrices(t *testing.T) {
	d := New()
	var target features.Vector
	target[features.IdxTxCount] = 10
	res := d.Score(target, nil)
	if res.MLScore < 0 || res.MLScore > 100 {
		t.Fatalf("ml score out of bounds for single-row matrix: %v", res.MLScore)
	}
}
