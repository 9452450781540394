package bloom

import (
	"fmt"
	"testing"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(500, 0.01)
	for i := 0; i < 500; i++ {
		f.Add(fmt.Sprintf("view-%d", i))
	}
	for i := 0; i < 500; i++ {
		if !f.Contains(fmt.Sprintf("view-%d", i)) {
			t.Fatalf("view-%d was added but Contains returned false", i)
		}
	}
}

func TestFilter_FalsePositiveRateWithinBounds(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add(fmt.Sprintf("in-%d", i))
	}

	falsePositives := 0
	for i := 0; i < 10000; i++ {
		if f.Contains(fmt.Sprintf("out-%d", i)) {
			falsePositives++
		}
	}
	// 1% target; allow generous slack for hash variance
	if rate := float64(falsePositives) / 10000; rate > 0.03 {
		t.Errorf("false positive rate %.4f exceeds 3%%", rate)
	}
}

func TestFilter_EmptyAndReset(t *testing.T) {
	f := New(0, 0)
	if f.Contains("anything") {
		t.Error("empty filter must not contain anything")
	}

	f.Add("password-field")
	if !f.Contains("password-field") || f.Count() != 1 {
		t.Error("expected item after Add")
	}

	f.Reset()
	if f.Contains("password-field") || f.Count() != 0 {
		t.Error("Reset should clear the filter")
	}
	if f.FalsePositiveRate() != 0 {
		t.Error("empty filter should report zero false positive rate")
	}
}

func TestOptimalParameters(t *testing.T) {
	bits, hashes := OptimalParameters(1000, 0.01)
	// m ≈ 9586, k ≈ 7
	if bits < 9500 || bits > 9700 {
		t.Errorf("unexpected bit count %d", bits)
	}
	if hashes != 7 {
		t.Errorf("expected 7 hashes, got %d", hashes)
	}
}
