package validate

import (
	"errors"
	"testing"
)

func TestCardNumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "valid visa test number", raw: "4242424242424242", want: "4242424242424242"},
		{name: "spaces stripped", raw: "4242 4242 4242 4242", want: "4242424242424242"},
		{name: "dashes stripped", raw: "4242-4242-4242-4242", want: "4242424242424242"},
		{name: "valid amex test number", raw: "378282246310005", want: "378282246310005"},
		{name: "fails luhn", raw: "4242424242424241", wantErr: true},
		{name: "too short", raw: "42424242424", wantErr: true},
		{name: "too long", raw: "42424242424242424242", wantErr: true},
		{name: "letters", raw: "4242abcd42424242", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CardNumber(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCardNumber) {
					t.Errorf("expected ErrInvalidCardNumber, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCVV(t *testing.T) {
	valid := []string{"123", "1234", "000"}
	for _, raw := range valid {
		if _, err := CVV(raw); err != nil {
			t.Errorf("CVV(%q): unexpected error %v", raw, err)
		}
	}

	invalid := []string{"", "12", "12345", "12a", "1 3"}
	for _, raw := range invalid {
		if _, err := CVV(raw); !errors.Is(err, ErrInvalidCVV) {
			t.Errorf("CVV(%q): expected ErrInvalidCVV, got %v", raw, err)
		}
	}
}
