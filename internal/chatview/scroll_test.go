package chatview

import "testing"

func TestNearBottom(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		height int
		total  int
		want   bool
	}{
		{"undersized transcript", 0, 20, 5, true},
		{"exactly at bottom", 30, 20, 50, true},
		{"within threshold", 27, 20, 50, true},
		{"just past threshold", 26, 20, 50, false},
		{"scrolled to top", 0, 20, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(0)
			tr.total = tt.total
			tr.SetViewport(tt.offset, tt.height)
			if got := tr.NearBottom(); got != tt.want {
				t.Errorf("NearBottom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnreadAccumulatesWhileScrolledUp(t *testing.T) {
	tr := NewTracker(0)
	tr.SetTotal(50)
	tr.SetViewport(0, 20) // scrolled to the top

	tr.SetTotal(53)
	if got := tr.Unread(); got != 3 {
		t.Fatalf("Unread() = %d, want 3", got)
	}

	tr.SetTotal(55)
	if got := tr.Unread(); got != 5 {
		t.Fatalf("Unread() = %d, want 5", got)
	}

	// Scrolling back to the bottom clears the badge.
	tr.SetViewport(35, 20)
	if got := tr.Unread(); got != 0 {
		t.Fatalf("Unread() after returning to bottom = %d, want 0", got)
	}
}

func TestNewLinesAtBottomStayRead(t *testing.T) {
	tr := NewTracker(0)
	tr.SetViewport(0, 20)
	tr.SetTotal(10)

	tr.SetTotal(12)
	if got := tr.Unread(); got != 0 {
		t.Fatalf("Unread() = %d, want 0 while at bottom", got)
	}
}

func TestMarkRead(t *testing.T) {
	tr := NewTracker(0)
	tr.SetTotal(50)
	tr.SetViewport(0, 20)
	tr.SetTotal(60)

	if tr.Unread() == 0 {
		t.Fatal("expected unread lines before MarkRead")
	}
	tr.MarkRead()
	if got := tr.Unread(); got != 0 {
		t.Fatalf("Unread() after MarkRead = %d, want 0", got)
	}
}

func TestThresholdFallback(t *testing.T) {
	tr := NewTracker(-1)
	if tr.threshold != DefaultBottomThreshold {
		t.Fatalf("threshold = %d, want default %d", tr.threshold, DefaultBottomThreshold)
	}
}
