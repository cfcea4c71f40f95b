package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitByBytes(t *testing.T) {
	text := strings.Repeat("ab", 5) + strings.Repeat("é", 3)
	parts := splitByBytes(text, 4)

	if strings.Join(parts, "") != text {
		t.Fatalf("parts do not rejoin: %q", parts)
	}
	for _, p := range parts {
		if len(p) > 4 {
			t.Errorf("part %q exceeds 4 bytes", p)
		}
		if !utf8.ValidString(p) {
			t.Errorf("part %q splits a rune", p)
		}
	}

	if got := splitByBytes("short", 4096); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %q", got)
	}
}

func TestTruncateByBytes(t *testing.T) {
	if got := truncateByBytes("ééé", 5); got != "éé" {
		t.Errorf("truncate = %q, want éé", got)
	}
	if got := truncateByBytes("abc", 10); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		in       string
		mime     string
		payload  string
		wantsErr bool
	}{
		{"data:image/png;base64,AAAA", "image/png", "AAAA", false},
		{"data:;base64,BBBB", "image/jpeg", "BBBB", false},
		{"CCCC", "image/jpeg", "CCCC", false},
		{"data:image/png;base64", "", "", true},
		{"  ", "", "", true},
	}
	for _, tt := range tests {
		mimeType, payload, err := parseDataURL(tt.in)
		if (err != nil) != tt.wantsErr {
			t.Errorf("parseDataURL(%q) err = %v", tt.in, err)
			continue
		}
		if mimeType != tt.mime || payload != tt.payload {
			t.Errorf("parseDataURL(%q) = %q, %q", tt.in, mimeType, payload)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	mimeType, data, err := decodeDataURL("data:image/gif;base64,aGk=")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mimeType != "image/gif" || string(data) != "hi" {
		t.Errorf("got %q %q", mimeType, data)
	}
	if _, _, err := decodeDataURL("data:image/png;base64,!!"); err == nil {
		t.Errorf("expected base64 error")
	}
}
