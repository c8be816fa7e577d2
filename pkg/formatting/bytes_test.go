package formatting_test

import (
	"testing"

	"github.com/JaimeStill/ldaa/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"megabytes", "100MB", 100 * 1024 * 1024, false},
		{"lowercase with space", "10 mb", 10 * 1024 * 1024, false},
		{"gigabytes", "2GB", 2 * 1024 * 1024 * 1024, false},
		{"fractional", "1.5 KB", 1536, false},
		{"iec suffix", "512KiB", 512 * 1024, false},
		{"short unit", "4k", 4 * 1024, false},
		{"unit only", "MB", 0, true},
		{"empty", "", 0, true},
		{"unknown unit", "50XX", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{0, 2, "0 B"},
		{500, 0, "500 B"},
		{50 * 1024 * 1024, 0, "50 MB"},
		{1536 * 1024, 1, "1.5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
				t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
			}

			if tt.precision == 0 {
				parsed, err := formatting.ParseBytes(tt.want)
				if err != nil || parsed != tt.n {
					t.Errorf("ParseBytes(%q) = %d, %v; want %d", tt.want, parsed, err, tt.n)
				}
			}
		})
	}
}
