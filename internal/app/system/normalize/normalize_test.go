package normalize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"email", Email, "  Jane.Doe@Example.EDU ", "jane.doe@example.edu"},
		{"email empty", Email, "   ", ""},
		{"login id", LoginID, " JDoe\t", "jdoe"},
		{"role", Role, "Professor ", "professor"},
		{"role admin", Role, "ADMIN", "admin"},
		{"name trimmed", Name, "  Jane Doe  ", "Jane Doe"},
		{"name inner runs", Name, "Jane \t  Doe", "Jane Doe"},
		{"name keeps case", Name, "Ada LOVELACE", "Ada LOVELACE"},
		{"name blank", Name, " \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
