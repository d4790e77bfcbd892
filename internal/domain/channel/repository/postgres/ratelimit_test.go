package postgres

import (
	"testing"
	"time"
)

func TestRefill(t *testing.T) {
	tests := []struct {
		name     string
		tokens   float64
		capacity int
		window   time.Duration
		elapsed  time.Duration
		want     float64
	}{
		{
			name:     "full bucket stays full",
			tokens:   20,
			capacity: 20,
			window:   time.Hour,
			elapsed:  time.Minute,
			want:     20,
		},
		{
			name:     "empty bucket refills proportionally",
			tokens:   0,
			capacity: 20,
			window:   time.Hour,
			elapsed:  30 * time.Minute,
			want:     10,
		},
		{
			name:     "refill clamps at capacity",
			tokens:   15,
			capacity: 20,
			window:   time.Hour,
			elapsed:  2 * time.Hour,
			want:     20,
		},
		{
			name:     "no elapsed time no refill",
			tokens:   3,
			capacity: 20,
			window:   time.Hour,
			elapsed:  0,
			want:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Refill(tt.tokens, tt.capacity, tt.window, tt.elapsed)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Refill() = %v, want %v", got, tt.want)
			}
		})
	}
}
