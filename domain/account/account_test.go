package account_test

import (
	"testing"

	"github.com/rdmonitor/rdmon/domain/account"
)

func TestProfile_Points(t *testing.T) {
	tests := []struct {
		points        int64
		wantConvert   int64
		wantRemaining int64
	}{
		{0, 0, 0},
		{-5, 0, 0},
		{999, 0, 999},
		{1000, 1000, 0},
		{1250, 1000, 250},
		{3999, 3000, 999},
	}

	for _, tt := range tests {
		p := account.Profile{Points: tt.points}
		if got := p.ConvertiblePoints(); got != tt.wantConvert {
			t.Errorf("ConvertiblePoints(%d) = %d, want %d", tt.points, got, tt.wantConvert)
		}
		if got := p.RemainingPoints(); got != tt.wantRemaining {
			t.Errorf("RemainingPoints(%d) = %d, want %d", tt.points, got, tt.wantRemaining)
		}
	}
}

func TestProfile_IsPremium(t *testing.T) {
	if !(account.Profile{Type: "premium"}).IsPremium() {
		t.Error("premium type should be premium")
	}
	if (account.Profile{Type: "free"}).IsPremium() {
		t.Error("free type should not be premium")
	}
}

func TestNewQuota(t *testing.T) {
	q := account.NewQuota(250, 1000)
	if q.LeftBytes != 750 {
		t.Errorf("LeftBytes = %d, want 750", q.LeftBytes)
	}
	if q.UsedPercent() != 25 {
		t.Errorf("UsedPercent = %v, want 25", q.UsedPercent())
	}

	over := account.NewQuota(2000, 1000)
	if over.LeftBytes != 0 {
		t.Errorf("LeftBytes = %d, want 0 when over the limit", over.LeftBytes)
	}

	if (account.Quota{UsedBytes: 5}).UsedPercent() != 0 {
		t.Error("UsedPercent without limit should be 0")
	}
}
