package model

import (
	"testing"
)

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"already two decimals", 420.00, 420},
		{"float noise", 380 * 0.98, 372.4},
		{"half rounds up", 2.675, 2.68},
		{"three decimals down", 10.004, 10},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundPrice(tt.input); got != tt.want {
				t.Errorf("RoundPrice(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(372.4); got != "372.40" {
		t.Errorf("FormatPrice(372.4) = %q, want 372.40", got)
	}
	if got := FormatPrice(450); got != "450.00" {
		t.Errorf("FormatPrice(450) = %q, want 450.00", got)
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		part, whole float64
		want        int
	}{
		{180, 2700, 7},
		{0, 100, 0},
		{50, 0, 0},
		{30, 450, 7},
		{1, 200, 1},
	}

	for _, tt := range tests {
		if got := PercentOf(tt.part, tt.whole); got != tt.want {
			t.Errorf("PercentOf(%v, %v) = %d, want %d", tt.part, tt.whole, got, tt.want)
		}
	}
}
