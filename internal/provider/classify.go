// Package provider holds helpers shared by the metadata and stream backends.
package provider

import (
	"errors"
	"fmt"
	"strings"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

var accessDeniedMarkers = []string{
	"sign in to confirm your age",
	"sign in to confirm you",
	"private video",
	"http error 403",
	"members-only",
	"join this channel",
	"login required",
	"login_required",
}

var notFoundMarkers = []string{
	"video unavailable",
	"this video is unavailable",
	"http error 404",
	"does not exist",
	"unsupported url",
	"incomplete youtube id",
}

// ClassifyMessage maps a provider error text onto a resolution code.
func ClassifyMessage(msg string) string {
	lower := strings.ToLower(msg)
	for _, m := range accessDeniedMarkers {
		if strings.Contains(lower, m) {
			return tmserrors.CodeAccessDenied
		}
	}
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return tmserrors.CodeNotFound
		}
	}
	return tmserrors.CodeTransient
}

// ResolutionError wraps err as a resolution failure, keeping detail (usually stderr) as the provider message.
func ResolutionError(err error, detail string) *tmserrors.DomainError {
	detail = strings.TrimSpace(detail)
	cause := err
	if detail != "" && (err == nil || !strings.Contains(err.Error(), detail)) {
		if err == nil {
			cause = errors.New(detail)
		} else {
			cause = fmt.Errorf("%w: %s", err, detail)
		}
	}
	code := ClassifyMessage(detail)
	if code == tmserrors.CodeTransient && err != nil {
		code = ClassifyMessage(err.Error())
	}
	return tmserrors.Resolution(cause, code)
}

// UnsupportedSelection reports that no alternative of a selection can be served.
func UnsupportedSelection(providerName, reason string) *tmserrors.DomainError {
	return tmserrors.NewDomainError(tmserrors.ErrorTypeTransfer, tmserrors.CodeUnsupportedSelection,
		fmt.Sprintf("%s cannot satisfy selection: %s", providerName, reason)).
		WithUserMessage("Requested quality is not available")
}
