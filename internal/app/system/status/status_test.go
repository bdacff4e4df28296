package status

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"", Active, nil},
		{"active", Active, nil},
		{" Disabled ", Disabled, nil},
		{"ACTIVE", Active, nil},
		{"pending", "", ErrUnknown},
		{"inactive", "", ErrUnknown},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestCanSignIn(t *testing.T) {
	tests := map[string]bool{
		Active:     true,
		"Active ":  true,
		Disabled:   false,
		"DISABLED": false,
		"":         false,
		"locked":   false,
	}
	for in, want := range tests {
		if got := CanSignIn(in); got != want {
			t.Errorf("CanSignIn(%q) = %v, want %v", in, got, want)
		}
	}
}
