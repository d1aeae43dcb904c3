// Package cookies detects and parses Netscape-format cookie files.
package cookies

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

var signatures = []string{
	"# Netscape HTTP Cookie File",
	"# HTTP Cookie File",
}

const (
	httpOnlyPrefix = "#HttpOnly_"
	netscapeFields = 7
)

// HasSignature reports whether content starts with a recognized cookie file header.
func HasSignature(content string) bool {
	for _, sig := range signatures {
		if strings.HasPrefix(content, sig) {
			return true
		}
	}
	return false
}

// Detect returns a credential for path when the file exists and carries a cookie file
// signature. Any other case yields an empty credential.
func Detect(path string) domain.Credential {
	if path == "" {
		return domain.Credential{}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logutils.Log.WithField("path", path).Debug("No cookie file found")
		} else {
			logutils.Log.WithError(err).WithField("path", path).Error("Error reading cookie file")
		}
		return domain.Credential{}
	}

	if !HasSignature(string(content)) {
		logutils.Log.WithField("path", path).Warn("Cookie file exists but has an invalid format")
		return domain.Credential{}
	}

	logutils.Log.WithField("path", path).Debug("Using cookie file")
	return domain.Credential{Path: path}
}

// Load parses a Netscape cookie file.
func Load(path string) ([]*http.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	var out []*http.Cookie
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(text, httpOnlyPrefix) {
			httpOnly = true
			text = strings.TrimPrefix(text, httpOnlyPrefix)
		}
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != netscapeFields {
			logutils.Log.WithField("line", line).Debug("Skipping malformed cookie line")
			continue
		}

		c := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			c.Expires = time.Unix(exp, 0)
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return out, nil
}

// Jar loads the cookie file behind cred into a jar. An absent credential yields an empty jar.
func Jar(cred domain.Credential) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if !cred.Present() {
		return jar, nil
	}

	list, err := Load(cred.Path)
	if err != nil {
		return nil, err
	}

	byHost := make(map[string][]*http.Cookie)
	for _, c := range list {
		host := strings.TrimPrefix(c.Domain, ".")
		byHost[host] = append(byHost[host], c)
	}
	for host, cs := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cs)
	}
	return jar, nil
}
