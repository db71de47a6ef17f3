package catalog

import "testing"

func TestValidDepartement(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{1, true},
		{75, true},
		{95, true},
		{0, false},
		{96, false},
		{971, false},
		{-1, false},
	}
	for _, tt := range tests {
		if got := ValidDepartement(tt.code); got != tt.want {
			t.Errorf("ValidDepartement(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDepartementFromPostcode(t *testing.T) {
	tests := []struct {
		postcode string
		want     int
		wantErr  bool
	}{
		{"75001", 75, false},
		{"01000", 1, false},
		{"95880", 95, false},
		{"97400", 0, true}, // overseas
		{"96000", 0, true},
		{"ABCDE", 0, true},
		{"7", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := DepartementFromPostcode(tt.postcode)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DepartementFromPostcode(%q): expected error", tt.postcode)
			}
			continue
		}
		if err != nil {
			t.Errorf("DepartementFromPostcode(%q): %v", tt.postcode, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DepartementFromPostcode(%q) = %d, want %d", tt.postcode, got, tt.want)
		}
	}
}
