package ytdlp

import (
	"strconv"
	"strings"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
)

// RenderSelection turns a selection into a yt-dlp format expression: alternatives joined
// by "/", merged pairs joined by "+".
func RenderSelection(sel domain.Selection) string {
	parts := make([]string, 0, len(sel))
	for _, alt := range sel {
		parts = append(parts, renderAlternative(alt))
	}
	return strings.Join(parts, "/")
}

func renderAlternative(alt domain.Alternative) string {
	if alt.Audio == nil {
		return renderRef(alt.Primary)
	}
	return renderRef(alt.Primary) + "+" + renderRef(*alt.Audio)
}

func renderRef(ref domain.StreamRef) string {
	if ref.FormatID != "" {
		return ref.FormatID
	}

	var b strings.Builder
	switch ref.Role {
	case domain.RoleVideo:
		b.WriteString("bestvideo")
	case domain.RoleAudio:
		b.WriteString("bestaudio")
	default:
		b.WriteString("best")
	}
	if ref.MaxHeight > 0 {
		b.WriteString("[height<=")
		b.WriteString(strconv.Itoa(ref.MaxHeight))
		b.WriteString("]")
	}
	if ref.Ext != "" {
		b.WriteString("[ext=")
		b.WriteString(ref.Ext)
		b.WriteString("]")
	}
	return b.String()
}
