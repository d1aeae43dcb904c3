// Package rendition turns raw provider format lists into a ranked catalog and maps
// client quality requests onto provider-neutral fetch specs.
package rendition

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
)

const (
	maxAudioRenditions = 3
	audioOnlyQuality   = "Audio Only"
)

// Normalize splits raw tracks into deduplicated video renditions (descending height)
// and at most three audio renditions (AAC first, then by size). Malformed tracks are skipped.
func Normalize(raw []domain.RawTrack) ([]domain.VideoRendition, []domain.AudioRendition) {
	var videos []domain.VideoRendition
	var audios []domain.AudioRendition

	for i := range raw {
		t := &raw[i]
		if v, ok := videoCandidate(t); ok {
			videos = append(videos, v)
		}
		if a, ok := audioCandidate(t); ok {
			audios = append(audios, a)
		}
	}

	return bestPerHeight(videos), rankAudio(audios)
}

// BuildCatalog assembles a catalog from a metadata document.
func BuildCatalog(meta *domain.RawMetadata) *domain.RenditionCatalog {
	catalog := &domain.RenditionCatalog{
		Formats: domain.Formats{
			Video: []domain.VideoRendition{},
			Audio: []domain.AudioRendition{},
		},
	}
	if meta == nil {
		return catalog
	}

	catalog.Title = meta.Title
	catalog.Thumbnail = meta.Thumbnail
	if meta.Duration > 0 && !math.IsInf(meta.Duration, 0) {
		catalog.Duration = int(math.Round(meta.Duration))
	}

	video, audio := Normalize(meta.Formats)
	if video != nil {
		catalog.Formats.Video = video
	}
	if audio != nil {
		catalog.Formats.Audio = audio
	}
	return catalog
}

func usableCodec(tag *string) bool {
	return tag != nil && *tag != "" && *tag != "none"
}

func strOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func sizeOf(t *domain.RawTrack) int64 {
	if t.Filesize == nil || *t.Filesize < 0 {
		return 0
	}
	return *t.Filesize
}

func videoCandidate(t *domain.RawTrack) (domain.VideoRendition, bool) {
	if !usableCodec(t.VCodec) || t.Height == nil || *t.Height <= 0 {
		return domain.VideoRendition{}, false
	}

	hasAudio := usableCodec(t.ACodec)
	size := sizeOf(t)
	if size == 0 && !hasAudio {
		return domain.VideoRendition{}, false
	}

	family := CodecFamilyOf(*t.VCodec)
	quality := fmt.Sprintf("%dp", *t.Height)
	sizeStr := FormatSize(size)

	fps := ""
	if t.FPS != nil && *t.FPS > 0 {
		fps = fmt.Sprintf(" %dfps", int(math.Round(*t.FPS)))
	}
	audioSuffix := ""
	if hasAudio {
		audioSuffix = "(with audio)"
	}

	return domain.VideoRendition{
		Quality:       quality,
		Format:        strOr(t.Ext, "mp4"),
		Size:          sizeStr,
		FormatID:      strOr(t.FormatID, domain.UnknownFormatID),
		Height:        *t.Height,
		HasAudio:      hasAudio,
		CodecPriority: family,
		CodecName:     family.String(),
		Filesize:      size,
		DisplayName:   fmt.Sprintf("%s%s %s (%s)", quality, fps, audioSuffix, sizeStr),
	}, true
}

func audioCandidate(t *domain.RawTrack) (domain.AudioRendition, bool) {
	if !usableCodec(t.ACodec) || usableCodec(t.VCodec) {
		return domain.AudioRendition{}, false
	}
	size := sizeOf(t)
	if size == 0 {
		return domain.AudioRendition{}, false
	}

	codec := AudioCodecOf(*t.ACodec)
	ext := strOr(t.Ext, "mp3")
	sizeStr := FormatSize(size)

	return domain.AudioRendition{
		Quality:     audioOnlyQuality,
		Format:      ext,
		Size:        sizeStr,
		FormatID:    strOr(t.FormatID, domain.UnknownFormatID),
		Codec:       codec,
		Filesize:    size,
		DisplayName: fmt.Sprintf("%s Audio (%s) - %s", codec, ext, sizeStr),
	}, true
}

// CodecFamilyOf ranks a video codec tag by case-sensitive substring. Tags spelled
// "vp09" carry no "vp9" substring and rank as Other.
func CodecFamilyOf(vcodec string) domain.CodecFamily {
	switch {
	case strings.Contains(vcodec, "avc1"):
		return domain.CodecH264
	case strings.Contains(vcodec, "vp9"):
		return domain.CodecVP9
	case strings.Contains(vcodec, "av01"):
		return domain.CodecAV1
	default:
		return domain.CodecOther
	}
}

// AudioCodecOf names an audio codec tag by substring: "mp4a" is AAC, "opus" is Opus.
func AudioCodecOf(acodec string) domain.AudioCodec {
	switch {
	case strings.Contains(acodec, "mp4a"):
		return domain.AudioAAC
	case strings.Contains(acodec, "opus"):
		return domain.AudioOpus
	default:
		return domain.AudioUnknown
	}
}

// better reports whether a strictly beats b for the same height.
func better(a, b *domain.VideoRendition) bool {
	if a.HasAudio != b.HasAudio {
		return a.HasAudio
	}
	if a.CodecPriority != b.CodecPriority {
		return a.CodecPriority < b.CodecPriority
	}
	return a.Filesize > b.Filesize
}

func bestPerHeight(candidates []domain.VideoRendition) []domain.VideoRendition {
	if len(candidates) == 0 {
		return nil
	}

	best := make(map[int]int, len(candidates))
	var order []int
	for i := range candidates {
		h := candidates[i].Height
		cur, seen := best[h]
		if !seen {
			best[h] = i
			order = append(order, h)
			continue
		}
		if better(&candidates[i], &candidates[cur]) {
			best[h] = i
		}
	}

	out := make([]domain.VideoRendition, 0, len(order))
	for _, h := range order {
		out = append(out, candidates[best[h]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Height > out[j].Height
	})
	return out
}

func rankAudio(audios []domain.AudioRendition) []domain.AudioRendition {
	if len(audios) == 0 {
		return nil
	}
	sort.SliceStable(audios, func(i, j int) bool {
		ai, aj := audios[i].Codec == domain.AudioAAC, audios[j].Codec == domain.AudioAAC
		if ai != aj {
			return ai
		}
		return audios[i].Filesize > audios[j].Filesize
	})
	if len(audios) > maxAudioRenditions {
		audios = audios[:maxAudioRenditions]
	}
	return audios
}
