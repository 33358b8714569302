package service

import (
	"regexp"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme Store", "acme-store"},
		{"punctuation", "Joe's Café & Bar!", "joes-caf-bar"},
		{"whitespace runs", "  Big   Bold\tShop  ", "big-bold-shop"},
		{"hyphen edges", "--Shop--", "shop"},
		{"underscore kept", "my_shop 2", "my_shop-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify_FallbackForEmpty(t *testing.T) {
	pattern := regexp.MustCompile(`^shop-[0-9a-z]{5}$`)
	for _, in := range []string{"", "متجري", "!!!", "   "} {
		got := Slugify(in)
		if !pattern.MatchString(got) {
			t.Errorf("Slugify(%q) = %q, want shop-xxxxx", in, got)
		}
	}
}

func TestSlugify_AllowedCharacters(t *testing.T) {
	allowed := regexp.MustCompile(`^[a-z0-9_-]+$`)
	for _, in := range []string{"Hello World", "Ünïcödé Shop", "a.b.c", "emoji 🚀 store", "x"} {
		got := Slugify(in)
		if got == "" || !allowed.MatchString(got) {
			t.Errorf("Slugify(%q) = %q has disallowed characters", in, got)
		}
	}
}

func TestNormalizeSlug(t *testing.T) {
	tests := map[string]string{
		"My-Shop":     "my-shop",
		" spaced out": "spacedout",
		"a.b/c":       "abc",
		"!!!":         "",
		"under_score": "under_score",
	}
	for in, want := range tests {
		if got := NormalizeSlug(in); got != want {
			t.Errorf("NormalizeSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithSuffix(t *testing.T) {
	got := withSuffix("acme")
	if !regexp.MustCompile(`^acme-[0-9a-z]{4}$`).MatchString(got) {
		t.Errorf("unexpected suffix slug %q", got)
	}
}
