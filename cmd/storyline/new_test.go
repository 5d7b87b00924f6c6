package main

import "testing"

func TestToTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"my-first-post", "My First Post"},
		{"notes", "Notes"},
		{"a--b", "A  B"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := toTitle(tt.in); got != tt.want {
			t.Errorf("toTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
