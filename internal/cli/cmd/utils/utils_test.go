package utils

import "testing"

func TestCanonicalPath(t *testing.T) {
	t.Setenv("HOME", "/home/someone")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", "/home/someone"},
		{"~/shaders/wave.wgsl", "/home/someone/shaders/wave.wgsl"},
		{"/absolute/path.wgsl", "/absolute/path.wgsl"},
		{"relative/path.wgsl", "relative/path.wgsl"},
	}

	for _, tt := range tests {
		if got := CanonicalPath(tt.in); got != tt.want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
