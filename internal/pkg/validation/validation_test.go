package validation

import (
	"errors"
	"strings"
	"testing"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

func TestIsValidVideoURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/abc123", true},
		{"no scheme", "youtube.com/watch?v=abc", true},
		{"http mobile", "http://m.youtube.com/watch?v=abc", true},
		{"shorts", "https://youtube.com/shorts/abc_DEF-1", true},
		{"empty", "", false},
		{"other host", "https://vimeo.com/12345", false},
		{"missing id", "https://youtu.be/", false},
		{"ftp scheme", "ftp://youtu.be/abc", false},
		{"channel page", "https://www.youtube.com/@channel", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidVideoURL(tt.url); got != tt.expected {
				t.Errorf("IsValidVideoURL(%q) = %v, expected %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestValidateVideoURL(t *testing.T) {
	err := ValidateVideoURL("not a url")
	if !errors.Is(err, tmserrors.ErrInvalidURL) {
		t.Fatalf("expected invalid url error, got %v", err)
	}
	if msg := tmserrors.UserMessage(err, ""); msg != "Invalid YouTube URL" {
		t.Errorf("user message = %q", msg)
	}
	if ValidateVideoURL("https://youtu.be/abc123") != nil {
		t.Error("expected a valid URL to pass")
	}
}

func TestValidatorChain(t *testing.T) {
	v := NewValidator().
		ValidateVideoURL("https://youtu.be/abc123").
		ValidateOneOf("webm", "format", []string{"mp4", "mp3"}, nil).
		ValidateMaxLength(strings.Repeat("x", 10), "quality", 5)

	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	var de *tmserrors.DomainError
	if !errors.As(v.GetFirstError(), &de) || de.Code != "invalid_value" {
		t.Errorf("expected the first failing check to be reported, got %v", v.GetFirstError())
	}
	if !tmserrors.IsValidation(v.GetFirstError()) {
		t.Errorf("expected validation error, got %v", v.GetFirstError())
	}

	invalidContainer := func(s string) error { return tmserrors.InvalidContainer(s) }
	v = NewValidator().ValidateOneOf("MP3", "format", []string{"mp4", "mp3"}, invalidContainer)
	if v.HasErrors() {
		t.Errorf("expected case-insensitive match, got %v", v.GetFirstError())
	}

	v = NewValidator().ValidateOneOf("webm", "format", []string{"mp4", "mp3"}, invalidContainer)
	if !errors.Is(v.GetFirstError(), tmserrors.ErrInvalidContainer) {
		t.Errorf("expected the custom failure, got %v", v.GetFirstError())
	}
}
