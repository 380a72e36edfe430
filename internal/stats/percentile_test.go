package stats

import "testing"

func TestPercentile_NearestRank(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[float64]float64{
		50: 5,
		90: 9,
		95: 10,
		99: 10,
	}
	for p, want := range cases {
		if got := Percentile(values, p); got != want {
			t.Errorf("Percentile(values, %v) = %v, want %v", p, got, want)
		}
	}
}

func TestPercentile_Empty(t *testing.T) {
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("Percentile(nil, 50) = %v, want 0", got)
	}
}

func TestPercentile_Single(t *testing.T) {
	if got := Percentile([]float64{42}, 99); got != 42 {
		t.Errorf("Percentile single = %v, want 42", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("Mean = %v, want 2", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}
