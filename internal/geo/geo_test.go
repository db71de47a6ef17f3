package geo

import "testing"

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLon float64
		wantLat float64
		wantErr bool
	}{
		{
			name:    "valid point",
			raw:     `{"type": "Point", "coordinates": [2.35, 48.85]}`,
			wantLon: 2.35,
			wantLat: 48.85,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "truncated json",
			raw:     `{"type": "Point", "coordinates": [2.35`,
			wantErr: true,
		},
		{
			name:    "not a point",
			raw:     `{"type": "LineString", "coordinates": [[0, 0], [1, 1]]}`,
			wantErr: true,
		},
		{
			name:    "missing coordinates",
			raw:     `{"type": "Point"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := ParsePoint(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", pt)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePoint: %v", err)
			}
			if pt.Lon() != tt.wantLon || pt.Lat() != tt.wantLat {
				t.Errorf("point = (%v, %v), want (%v, %v)", pt.Lon(), pt.Lat(), tt.wantLon, tt.wantLat)
			}
		})
	}
}
