package cookies

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/testutils"
)

const sampleCookies = "# Netscape HTTP Cookie File\n" +
	"# This is a generated file! Do not edit.\n" +
	"\n" +
	".youtube.com\tTRUE\t/\tTRUE\t2147483647\tPREF\tf6=40000000\n" +
	"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t2147483647\tLOGIN_INFO\tabc\n" +
	"broken line\n"

func TestDetect(t *testing.T) {
	dir := testutils.TempDir(t)

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "netscape header", path: testutils.WriteFile(t, dir, "a.txt", sampleCookies), expected: true},
		{name: "legacy header", path: testutils.WriteFile(t, dir, "b.txt", "# HTTP Cookie File\n"), expected: true},
		{name: "wrong header", path: testutils.WriteFile(t, dir, "c.txt", "PREF=1\n"), expected: false},
		{name: "missing file", path: filepath.Join(dir, "missing.txt"), expected: false},
		{name: "empty path", path: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := Detect(tt.path)
			if cred.Present() != tt.expected {
				t.Errorf("Detect(%q).Present() = %v, expected %v", tt.path, cred.Present(), tt.expected)
			}
			if tt.expected && cred.Path != tt.path {
				t.Errorf("credential path = %q, expected %q", cred.Path, tt.path)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := testutils.WriteFile(t, testutils.TempDir(t), "cookies.txt", sampleCookies)

	list, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(list))
	}
	if list[0].Name != "PREF" || list[0].Value != "f6=40000000" || !list[0].Secure {
		t.Errorf("unexpected first cookie: %+v", list[0])
	}
	if list[1].Name != "LOGIN_INFO" || !list[1].HttpOnly {
		t.Errorf("unexpected HttpOnly cookie: %+v", list[1])
	}
}

func TestJar(t *testing.T) {
	path := testutils.WriteFile(t, testutils.TempDir(t), "cookies.txt", sampleCookies)

	jar, err := Jar(domain.Credential{Path: path})
	if err != nil {
		t.Fatalf("Jar failed: %v", err)
	}
	got := jar.Cookies(&url.URL{Scheme: "https", Host: "www.youtube.com", Path: "/watch"})
	if len(got) != 2 {
		t.Errorf("expected 2 cookies for www.youtube.com, got %d", len(got))
	}

	empty, err := Jar(domain.Credential{})
	if err != nil || len(empty.Cookies(&url.URL{Scheme: "https", Host: "www.youtube.com"})) != 0 {
		t.Errorf("expected empty jar, got err=%v", err)
	}
}
