package domain

import "testing"

func TestParseContainer(t *testing.T) {
	tests := []struct {
		input    string
		expected Container
		ok       bool
	}{
		{"video", ContainerVideo, true},
		{"mp4", ContainerVideo, true},
		{"", ContainerVideo, true},
		{"audio", ContainerAudio, true},
		{"MP3", ContainerAudio, true},
		{"webm", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseContainer(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseContainer(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestCodecFamily_String(t *testing.T) {
	tests := []struct {
		family   CodecFamily
		expected string
	}{
		{CodecH264, "H.264"},
		{CodecVP9, "VP9"},
		{CodecAV1, "AV1"},
		{CodecOther, "Other"},
		{CodecFamily(42), "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.family.String(); got != tt.expected {
				t.Errorf("CodecFamily.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRenditionCatalogHelpers(t *testing.T) {
	catalog := &RenditionCatalog{
		Formats: Formats{
			Video: []VideoRendition{
				{FormatID: "137", Height: 1080},
				{FormatID: "22", Height: 720, HasAudio: true},
			},
			Audio: []AudioRendition{{FormatID: "140"}, {FormatID: "251"}},
		},
	}

	muxed := catalog.MuxedIDs()
	if !muxed["22"] || muxed["137"] {
		t.Errorf("MuxedIDs() = %v", muxed)
	}
	if got := catalog.TopAudioID(); got != "140" {
		t.Errorf("TopAudioID() = %q, want 140", got)
	}

	var empty *RenditionCatalog
	if len(empty.MuxedIDs()) != 0 || empty.TopAudioID() != "" {
		t.Error("nil catalog must yield empty helpers")
	}
}

func TestEventKind_Terminal(t *testing.T) {
	for _, k := range []EventKind{EventCompleted, EventCancelled, EventFailed} {
		if !k.Terminal() {
			t.Errorf("%s should be terminal", k)
		}
	}
	for _, k := range []EventKind{EventFetchStarted, EventProgress, EventResolveStarted} {
		if k.Terminal() {
			t.Errorf("%s should not be terminal", k)
		}
	}
}
