package estimator

import "testing"

func TestTruncate2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.239, 1.23},
		{-1.239, -1.23},
		{0.999, 0.99},
		{-0.009, 0.0},
		{2.0, 2.0},
		{0, 0},
	}
	for _, c := range cases {
		if got := Truncate2(c.in); got != c.want {
			t.Errorf("Truncate2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTruncate2Idempotent(t *testing.T) {
	for _, v := range []float64{1.239, -1.239, 0.005, -0.005, 3.14159} {
		once := Truncate2(v)
		if twice := Truncate2(once); twice != once {
			t.Errorf("Truncate2 not idempotent for %v: %v then %v", v, once, twice)
		}
	}
}
