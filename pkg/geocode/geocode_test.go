package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityRank_Ordering(t *testing.T) {
	assert.Greater(t, QualityExact.Rank(), QualityInterpolated.Rank())
	assert.Greater(t, QualityInterpolated.Rank(), QualityApproximate.Rank())
	assert.Greater(t, QualityApproximate.Rank(), Quality("garbage").Rank())
	assert.Equal(t, 0, Quality("").Rank())
}

func TestBetter_QualityWinsOverConfidence(t *testing.T) {
	interpolated := &Result{Quality: QualityInterpolated, Confidence: 0.95}
	exact := &Result{Quality: QualityExact, Confidence: 0.5}

	assert.True(t, exact.Better(interpolated))
	assert.False(t, interpolated.Better(exact))
}

func TestBetter_ConfidenceBreaksTies(t *testing.T) {
	low := &Result{Quality: QualityApproximate, Confidence: 0.3}
	high := &Result{Quality: QualityApproximate, Confidence: 0.7}

	assert.True(t, high.Better(low))
	assert.False(t, low.Better(high))
}

func TestBetter_NilOther(t *testing.T) {
	r := &Result{Quality: QualityApproximate, Confidence: 0.1}
	assert.True(t, r.Better(nil))
}

func TestBetter_EqualIsNotBetter(t *testing.T) {
	a := &Result{Quality: QualityInterpolated, Confidence: 0.5}
	b := &Result{Quality: QualityInterpolated, Confidence: 0.5}
	assert.False(t, a.Better(b))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-0.5))
	assert.Equal(t, 1.0, clampConfidence(1.5))
	assert.Equal(t, 0.42, clampConfidence(0.42))
}
