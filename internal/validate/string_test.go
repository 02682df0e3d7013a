package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{
			name:        "valid string",
			input:       "hello",
			constraints: StringConstraints{MinLength: 1, MaxLength: 10},
			want:        "hello",
		},
		{
			name:        "trims whitespace",
			input:       "  hello  ",
			constraints: StringConstraints{TrimSpace: true},
			want:        "hello",
		},
		{
			name:        "empty not allowed",
			input:       "",
			constraints: StringConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "whitespace only trims to empty",
			input:       "   ",
			constraints: StringConstraints{TrimSpace: true},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty allowed",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			want:        "",
		},
		{
			name:        "too short",
			input:       "ab",
			constraints: StringConstraints{MinLength: 3},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       "abcdef",
			constraints: StringConstraints{MaxLength: 5},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "length counts runes not bytes",
			input:       "héllo",
			constraints: StringConstraints{MaxLength: 5},
			want:        "héllo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
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

func TestNoteContent(t *testing.T) {
	got, err := NoteContent("  Customer called to confirm  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Customer called to confirm" {
		t.Errorf("expected trimmed content, got %q", got)
	}

	if _, err := NoteContent("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty for blank note, got %v", err)
	}

	if _, err := NoteContent(strings.Repeat("x", 2001)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("expected ErrStringTooLong for oversized note, got %v", err)
	}
}

func TestNoteContent_EscapesHTML(t *testing.T) {
	got, err := NoteContent(`Refund <script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("expected HTML to be escaped, got %q", got)
	}
}
