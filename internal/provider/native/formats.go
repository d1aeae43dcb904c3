package native

import (
	"mime"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
)

const noCodec = "none"

// parseMime splits a format mime type such as `video/mp4; codecs="avc1.64001F, mp4a.40.2"`.
func parseMime(mimeType string) (string, []string) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", nil
	}
	var codecs []string
	for _, c := range strings.Split(params["codecs"], ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}
	return strings.ToLower(mediaType), codecs
}

func isAudioType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/")
}

// mediaTypeOf returns the content type and file extension a format is served as.
func mediaTypeOf(f *youtube.Format) (string, string) {
	mediaType, _ := parseMime(f.MimeType)
	switch mediaType {
	case "video/mp4":
		return mediaType, "mp4"
	case "audio/mp4":
		return mediaType, "m4a"
	case "video/webm", "audio/webm":
		return mediaType, "webm"
	case "":
		return "application/octet-stream", "bin"
	}
	_, sub, _ := strings.Cut(mediaType, "/")
	return mediaType, sub
}

// MapFormat converts one youtube format into a raw track.
func MapFormat(f *youtube.Format) domain.RawTrack {
	mediaType, codecs := parseMime(f.MimeType)
	_, ext := mediaTypeOf(f)

	vcodec, acodec := noCodec, noCodec
	switch {
	case isAudioType(mediaType):
		if len(codecs) > 0 {
			acodec = codecs[0]
		}
	case len(codecs) > 1:
		vcodec, acodec = codecs[0], codecs[1]
	case len(codecs) == 1:
		vcodec = codecs[0]
		if f.AudioChannels > 0 {
			acodec = "unknown"
		}
	}

	id := strconv.Itoa(f.ItagNo)
	t := domain.RawTrack{
		FormatID: &id,
		Ext:      &ext,
		VCodec:   &vcodec,
		ACodec:   &acodec,
	}
	if f.Height > 0 {
		h := f.Height
		t.Height = &h
	}
	if f.Width > 0 {
		w := f.Width
		t.Width = &w
	}
	if f.ContentLength > 0 {
		size := f.ContentLength
		t.Filesize = &size
	}
	if f.FPS > 0 {
		fps := float64(f.FPS)
		t.FPS = &fps
	}
	if f.QualityLabel != "" {
		note := f.QualityLabel
		t.FormatNote = &note
	}
	return t
}

func hasVideo(f *youtube.Format) bool {
	mediaType, _ := parseMime(f.MimeType)
	return !isAudioType(mediaType) && (f.Height > 0 || f.Width > 0)
}

func hasAudio(f *youtube.Format) bool {
	mediaType, _ := parseMime(f.MimeType)
	return f.AudioChannels > 0 || isAudioType(mediaType)
}

func matches(f *youtube.Format, ref domain.StreamRef) bool {
	if ref.FormatID != "" {
		return strconv.Itoa(f.ItagNo) == ref.FormatID
	}
	switch ref.Role {
	case domain.RoleMuxed:
		if !hasVideo(f) || !hasAudio(f) {
			return false
		}
	case domain.RoleVideo:
		if !hasVideo(f) {
			return false
		}
	case domain.RoleAudio:
		if hasVideo(f) || !hasAudio(f) {
			return false
		}
	}
	if ref.MaxHeight > 0 && f.Height > ref.MaxHeight {
		return false
	}
	if ref.Ext != "" {
		if _, ext := mediaTypeOf(f); ext != ref.Ext {
			return false
		}
	}
	return true
}

func bitrate(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

// outranks orders same-alternative candidates: taller first, then higher bitrate.
func outranks(a, b *youtube.Format) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return bitrate(a) > bitrate(b)
}

// Pick returns the best format for the first alternative that needs no merge and has a match,
// together with that alternative's index. It returns nil when nothing qualifies.
func Pick(formats youtube.FormatList, sel domain.Selection) (*youtube.Format, int) {
	for i, alt := range sel {
		if alt.IsMerge() {
			continue
		}
		var best *youtube.Format
		for j := range formats {
			f := &formats[j]
			if !matches(f, alt.Primary) {
				continue
			}
			if best == nil || outranks(f, best) {
				best = f
			}
		}
		if best != nil {
			return best, i
		}
	}
	return nil, -1
}
