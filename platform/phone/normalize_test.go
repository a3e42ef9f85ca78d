package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"(415) 555-2671", "+14155552671"},
		{"+44 20 7946 0958", "+442079460958"},
		{"  +14155552671  ", "+14155552671"},
		{"not a number", "not a number"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeE164(tt.input); got != tt.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
