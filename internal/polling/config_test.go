package polling

import (
	"testing"
	"time"
)

func TestInterval(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name        string
		sinceChange time.Duration
		changed     bool
		want        time.Duration
	}{
		{"fresh change polls fast", 0, true, cfg.MinInterval},
		{"change wins over idle age", 5 * time.Minute, true, cfg.MinInterval},
		{"recently active", 10 * time.Second, false, cfg.BaseInterval},
		{"just under the activity timeout", cfg.ActivityTimeout - time.Millisecond, false, cfg.BaseInterval},
		{"idle slows down", cfg.ActivityTimeout, false, 6 * time.Second},
		{"long idle", time.Hour, false, 6 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Interval(tt.sinceChange, tt.changed); got != tt.want {
				t.Errorf("Interval(%v, %v) = %v, want %v", tt.sinceChange, tt.changed, got, tt.want)
			}
		})
	}
}

func TestIntervalCappedByMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseInterval = 4 * time.Second // 3x would exceed MaxInterval

	if got := cfg.Interval(time.Hour, false); got != cfg.MaxInterval {
		t.Errorf("idle interval = %v, want cap %v", got, cfg.MaxInterval)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.BackoffDelay(tt.retryCount); got != tt.want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}
