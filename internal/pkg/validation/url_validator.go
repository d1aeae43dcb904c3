package validation

import (
	"net/url"
	"regexp"
	"strings"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

// videoURLPattern accepts watch, short-link and shorts URLs with an optional scheme and www prefix.
var videoURLPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/watch\?v=|youtube\.com/shorts/|youtu\.be/)[\w-]+`)

// IsValidVideoURL checks the URL shape only; it never touches the network.
func IsValidVideoURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || !videoURLPattern.MatchString(rawURL) {
		return false
	}

	withScheme := rawURL
	if !strings.Contains(rawURL, "://") {
		withScheme = "https://" + rawURL
	}
	parsed, err := url.Parse(withScheme)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// ValidateVideoURL returns an invalid URL error for anything IsValidVideoURL rejects.
func ValidateVideoURL(rawURL string) error {
	if !IsValidVideoURL(rawURL) {
		return tmserrors.InvalidURL(rawURL)
	}
	return nil
}
