package form

import (
	"testing"
	"time"
)

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		name      string
		days      int
		wantLabel string
		wantColor string
	}{
		{name: "past deadline", days: -1, wantLabel: "Vencido", wantColor: "red"},
		{name: "due today", days: 0, wantLabel: "Vencido", wantColor: "red"},
		{name: "urgent lower bound", days: 1, wantLabel: "Urgente", wantColor: "red"},
		{name: "urgent", days: 3, wantLabel: "Urgente", wantColor: "red"},
		{name: "urgent upper bound", days: 5, wantLabel: "Urgente", wantColor: "red"},
		{name: "important", days: 8, wantLabel: "Importante", wantColor: "amber"},
		{name: "important upper bound", days: 10, wantLabel: "Importante", wantColor: "amber"},
		{name: "normal lower bound", days: 11, wantLabel: "Normal", wantColor: "blue"},
		{name: "normal", days: 20, wantLabel: "Normal", wantColor: "blue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UrgencyFor(tt.days)
			if got.Label != tt.wantLabel || got.Color != tt.wantColor {
				t.Errorf("UrgencyFor(%d) = %v/%v; want %v/%v",
					tt.days, got.Label, got.Color, tt.wantLabel, tt.wantColor)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2021, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{name: "deadline passed", deadline: now.Add(-time.Hour), want: -1},
		{name: "deadline is now", deadline: now, want: -1},
		{name: "under a day rounds up", deadline: now.Add(2 * time.Hour), want: 1},
		{name: "exactly one day", deadline: now.Add(24 * time.Hour), want: 1},
		{name: "a day and change rounds up", deadline: now.Add(25 * time.Hour), want: 2},
		{name: "three weeks", deadline: now.Add(20 * 24 * time.Hour), want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(tt.deadline, now); got != tt.want {
				t.Errorf("DaysRemaining() = %d; want %d", got, tt.want)
			}
		})
	}
}
