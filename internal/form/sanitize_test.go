package form

import (
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeDropsScript(t *testing.T) {
	got := SanitizeString("<script>alert(1)</script>John")
	if strings.Contains(got, "<script>") {
		t.Fatalf("script survived: %q", got)
	}
	if !strings.Contains(got, "John") {
		t.Fatalf("text lost: %q", got)
	}
	if strings.Contains(got, "alert") {
		t.Fatalf("script body survived: %q", got)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"<p class=\"x\" onclick=\"evil()\">Hi <b>there</b></p>", "<p>Hi there</p>"},
		{"line<br/>break", "line<br>break"},
		{"<ul><li>a</li><li>b</li></ul>", "<ul><li>a</li><li>b</li></ul>"},
		{"<img src=x onerror=alert(1)>ok", "ok"},
		{"<style>body{}</style><em>x</em>", "<em>x</em>"},
		{"<!-- note -->text", "text"},
		{"a\x00b\x07c\td\ne", "abc\td\ne"},
		{"Tom &amp; Jerry", "Tom &amp; Jerry"},
		{"<STRONG>Loud</STRONG>", "<strong>Loud</strong>"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in); got != tc.want {
			t.Fatalf("SanitizeString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeRecursesAndPassesThrough(t *testing.T) {
	u := &UploadedFile{Filename: "a.png"}
	in := map[string]any{
		"list":   []any{" <i>a</i> ", 3.5, []string{"<u>b</u>"}},
		"nested": map[string]any{"k": "<script>x</script>v"},
		"num":    42.0,
		"flag":   true,
		"file":   u,
	}
	got := Sanitize(in).(map[string]any)

	want := []any{"a", 3.5, []string{"<u>b</u>"}}
	if !reflect.DeepEqual(got["list"], want) {
		t.Fatalf("list = %#v", got["list"])
	}
	if got["nested"].(map[string]any)["k"] != "v" {
		t.Fatalf("nested = %#v", got["nested"])
	}
	if got["num"] != 42.0 || got["flag"] != true || got["file"] != u {
		t.Fatal("non-string values changed")
	}
}
