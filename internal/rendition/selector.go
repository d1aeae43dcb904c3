package rendition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

const (
	TokenBest      = "best"
	formatIDPrefix = "formatId:"

	// legacyMuxedID is the one progressive format that always carries audio.
	legacyMuxedID = "18"

	videoExt         = "mp4"
	videoContentType = "video/mp4"
	audioExt         = "mp3"
	audioContentType = "audio/mpeg"
	pairedAudioExt   = "m4a"
)

var (
	formatIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.=-]*$`)
	heightPattern   = regexp.MustCompile(`^(\d{2,4})p?$`)
)

// Known carries catalog facts the selector may use. The zero value is valid.
type Known struct {
	MuxedIDs   map[string]bool
	TopAudioID string
}

func KnownFromCatalog(c *domain.RenditionCatalog) Known {
	return Known{
		MuxedIDs:   c.MuxedIDs(),
		TopAudioID: c.TopAudioID(),
	}
}

// ValidateToken checks the shape of a quality token without building a spec.
func ValidateToken(token string) error {
	_, err := parseToken(token)
	return err
}

type tokenKind int

const (
	tokenBest tokenKind = iota
	tokenFormatID
	tokenHeight
)

type parsedToken struct {
	kind     tokenKind
	formatID string
	height   int
}

func parseToken(token string) (parsedToken, error) {
	t := strings.TrimSpace(token)
	if t == "" || t == TokenBest {
		return parsedToken{kind: tokenBest}, nil
	}

	if id, ok := strings.CutPrefix(t, formatIDPrefix); ok {
		if !formatIDPattern.MatchString(id) {
			return parsedToken{}, tmserrors.InvalidSelection(token)
		}
		return parsedToken{kind: tokenFormatID, formatID: id}, nil
	}

	if m := heightPattern.FindStringSubmatch(t); m != nil {
		h, err := strconv.Atoi(m[1])
		if err == nil && h >= 1 && h <= 9999 {
			return parsedToken{kind: tokenHeight, height: h}, nil
		}
	}

	return parsedToken{}, tmserrors.InvalidSelection(token)
}

// SelectSpec maps a container and quality token to a fetch spec. It performs no I/O.
func SelectSpec(container domain.Container, token string, known Known) (domain.FetchSpec, error) {
	switch container {
	case domain.ContainerAudio:
		return audioSpec(token, known), nil
	case domain.ContainerVideo:
	default:
		return domain.FetchSpec{}, tmserrors.InvalidContainer(string(container))
	}

	parsed, err := parseToken(token)
	if err != nil {
		return domain.FetchSpec{}, err
	}

	spec := domain.FetchSpec{
		Container:   domain.ContainerVideo,
		Ext:         videoExt,
		ContentType: videoContentType,
		Token:       token,
		MergeFormat: videoExt,
	}

	switch parsed.kind {
	case tokenBest:
		spec.Token = TokenBest
		spec.Selection = bestSelection()
	case tokenFormatID:
		spec.Selection = formatIDSelection(parsed.formatID, known)
	case tokenHeight:
		spec.Selection = heightSelection(parsed.height)
	}
	return spec, nil
}

func audioSpec(token string, known Known) domain.FetchSpec {
	var sel domain.Selection
	if known.TopAudioID != "" {
		sel = append(sel, domain.Alternative{
			Primary: domain.StreamRef{Role: domain.RoleAudio, FormatID: known.TopAudioID},
		})
	}
	sel = append(sel, domain.Alternative{Primary: domain.StreamRef{Role: domain.RoleAudio}})

	return domain.FetchSpec{
		Container:    domain.ContainerAudio,
		Ext:          audioExt,
		ContentType:  audioContentType,
		Token:        token,
		Selection:    sel,
		ExtractAudio: true,
	}
}

func pairedAudio(ext string) *domain.StreamRef {
	return &domain.StreamRef{Role: domain.RoleAudio, Ext: ext}
}

func bestSelection() domain.Selection {
	return domain.Selection{
		{Primary: domain.StreamRef{Role: domain.RoleMuxed, Ext: videoExt}},
		{Primary: domain.StreamRef{Role: domain.RoleVideo, Ext: videoExt}, Audio: pairedAudio(pairedAudioExt)},
		{Primary: domain.StreamRef{Role: domain.RoleMuxed}},
	}
}

func formatIDSelection(id string, known Known) domain.Selection {
	if id == legacyMuxedID || known.MuxedIDs[id] {
		return domain.Selection{{Primary: domain.StreamRef{FormatID: id}}}
	}
	ref := domain.StreamRef{Role: domain.RoleVideo, FormatID: id}
	return domain.Selection{
		{Primary: ref, Audio: pairedAudio(pairedAudioExt)},
		{Primary: ref, Audio: pairedAudio("")},
	}
}

func heightSelection(h int) domain.Selection {
	return domain.Selection{
		{
			Primary: domain.StreamRef{Role: domain.RoleVideo, MaxHeight: h, Ext: videoExt},
			Audio:   pairedAudio(pairedAudioExt),
		},
		{Primary: domain.StreamRef{Role: domain.RoleMuxed, MaxHeight: h}},
	}
}
