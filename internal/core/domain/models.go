package domain

import "strings"

// RawTrack is one entry of a provider's format list. Every field may be absent.
type RawTrack struct {
	FormatID   *string  `json:"format_id,omitempty"`
	Ext        *string  `json:"ext,omitempty"`
	Height     *int     `json:"height,omitempty"`
	Width      *int     `json:"width,omitempty"`
	VCodec     *string  `json:"vcodec,omitempty"`
	ACodec     *string  `json:"acodec,omitempty"`
	Filesize   *int64   `json:"filesize,omitempty"`
	FPS        *float64 `json:"fps,omitempty"`
	FormatNote *string  `json:"format_note,omitempty"`
}

// RawMetadata is the single document a metadata provider returns for a URL.
type RawMetadata struct {
	Title     string     `json:"title"`
	Duration  float64    `json:"duration"`
	Thumbnail string     `json:"thumbnail"`
	Formats   []RawTrack `json:"formats"`
}

// CodecFamily ranks video codecs; lower values win.
type CodecFamily int

const (
	CodecH264  CodecFamily = 1
	CodecVP9   CodecFamily = 2
	CodecAV1   CodecFamily = 3
	CodecOther CodecFamily = 4
)

func (c CodecFamily) String() string {
	switch c {
	case CodecH264:
		return "H.264"
	case CodecVP9:
		return "VP9"
	case CodecAV1:
		return "AV1"
	default:
		return "Other"
	}
}

type AudioCodec string

const (
	AudioAAC     AudioCodec = "AAC"
	AudioOpus    AudioCodec = "Opus"
	AudioUnknown AudioCodec = "Unknown"
)

type VideoRendition struct {
	Quality       string      `json:"quality"`
	Format        string      `json:"format"`
	Size          string      `json:"size"`
	FormatID      string      `json:"formatId"`
	Height        int         `json:"height"`
	HasAudio      bool        `json:"hasAudio"`
	CodecPriority CodecFamily `json:"codecPriority"`
	CodecName     string      `json:"codecName"`
	Filesize      int64       `json:"filesize"`
	DisplayName   string      `json:"displayName"`
}

type AudioRendition struct {
	Quality     string     `json:"quality"`
	Format      string     `json:"format"`
	Size        string     `json:"size"`
	FormatID    string     `json:"formatId"`
	Codec       AudioCodec `json:"codecName"`
	Filesize    int64      `json:"filesize"`
	DisplayName string     `json:"displayName"`
}

type Formats struct {
	Video []VideoRendition `json:"video"`
	Audio []AudioRendition `json:"audio"`
}

// RenditionCatalog is built fresh per resolve and not mutated afterwards.
type RenditionCatalog struct {
	Title     string  `json:"title"`
	Duration  int     `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Formats   Formats `json:"formats"`
}

// MuxedIDs returns the provider ids of video renditions that already carry audio.
func (c *RenditionCatalog) MuxedIDs() map[string]bool {
	ids := make(map[string]bool)
	if c == nil {
		return ids
	}
	for _, v := range c.Formats.Video {
		if v.HasAudio {
			ids[v.FormatID] = true
		}
	}
	return ids
}

// UnknownFormatID stands in for a track that carried no provider id.
const UnknownFormatID = "unknown"

// TopAudioID returns the id of the best ranked audio rendition, or "" when there is none.
func (c *RenditionCatalog) TopAudioID() string {
	if c == nil || len(c.Formats.Audio) == 0 {
		return ""
	}
	id := c.Formats.Audio[0].FormatID
	if id == UnknownFormatID {
		return ""
	}
	return id
}

type Container string

const (
	ContainerVideo Container = "video"
	ContainerAudio Container = "audio"
)

// ParseContainer accepts the canonical names and the mp4/mp3 wire aliases.
func ParseContainer(s string) (Container, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video", "mp4":
		return ContainerVideo, true
	case "audio", "mp3":
		return ContainerAudio, true
	default:
		return "", false
	}
}

type StreamRole string

const (
	RoleMuxed StreamRole = "muxed"
	RoleVideo StreamRole = "video"
	RoleAudio StreamRole = "audio"
)

// StreamRef describes one stream a provider should pick. Zero fields mean "any".
type StreamRef struct {
	Role      StreamRole
	FormatID  string
	Ext       string
	MaxHeight int
}

// Alternative is a single stream, or a video and audio pair when Audio is set.
type Alternative struct {
	Primary StreamRef
	Audio   *StreamRef
}

func (a Alternative) IsMerge() bool {
	return a.Audio != nil
}

// Selection lists alternatives in preference order.
type Selection []Alternative

type FetchSpec struct {
	Container    Container
	Ext          string
	ContentType  string
	Token        string
	Selection    Selection
	MergeFormat  string
	ExtractAudio bool
}

// StreamInfo is what a provider knows once a byte source is open.
type StreamInfo struct {
	ExpectedBytes int64
	ContentType   string
	Ext           string
}

// Credential points at an optional cookie file. Empty Path means no credentials.
type Credential struct {
	Path string
}

func (c Credential) Present() bool {
	return c.Path != ""
}
