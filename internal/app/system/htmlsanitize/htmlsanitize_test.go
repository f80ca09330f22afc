package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/admitdesk/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if got := htmlsanitize.Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitize_SafeHTML(t *testing.T) {
	input := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Sanitize(input); got != input {
		t.Errorf("expected safe HTML preserved, got %q", got)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	got := htmlsanitize.Sanitize("<p>Hello</p><script>alert('xss')</script>")
	if got != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	got := htmlsanitize.Sanitize(`<a href="javascript:alert('xss')">Click</a>`)
	if strings.Contains(got, "javascript:") {
		t.Errorf("expected javascript: href to be removed, got %q", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"plain", "When is the deadline?", "When is the deadline?"},
		{"trims", "  hi  ", "hi"},
		{"strips tags", "<b>urgent</b> question", "urgent question"},
		{"drops script", "hi<script>alert(1)</script>", "hi"},
		{"keeps ampersand", "Q&A session", "Q&A session"},
		{"only markup", "<img src=x onerror=alert(1)>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
