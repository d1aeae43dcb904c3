package rendition

import (
	"errors"
	"testing"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

func TestSelectSpecBest(t *testing.T) {
	for _, token := range []string{"best", "", "  best "} {
		spec, err := SelectSpec(domain.ContainerVideo, token, Known{})
		if err != nil {
			t.Fatalf("token %q: unexpected error %v", token, err)
		}
		if spec.Ext != "mp4" || spec.ContentType != "video/mp4" || spec.MergeFormat != "mp4" {
			t.Errorf("unexpected output packaging: %+v", spec)
		}
		if len(spec.Selection) != 3 {
			t.Fatalf("expected 3 alternatives, got %d", len(spec.Selection))
		}
		first, second, third := spec.Selection[0], spec.Selection[1], spec.Selection[2]
		if first.Primary.Role != domain.RoleMuxed || first.Primary.Ext != "mp4" || first.IsMerge() {
			t.Errorf("first alternative = %+v", first)
		}
		if !second.IsMerge() || second.Primary.Ext != "mp4" || second.Audio.Ext != "m4a" {
			t.Errorf("second alternative = %+v", second)
		}
		if third.Primary.Role != domain.RoleMuxed || third.Primary.Ext != "" {
			t.Errorf("third alternative = %+v", third)
		}
	}
}

func TestSelectSpecHeight(t *testing.T) {
	spec, err := SelectSpec(domain.ContainerVideo, "1080p", Known{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Selection) != 2 {
		t.Fatalf("expected 2 alternatives, got %d", len(spec.Selection))
	}
	for i, alt := range spec.Selection {
		if alt.Primary.MaxHeight != 1080 {
			t.Errorf("alternative %d max height = %d", i, alt.Primary.MaxHeight)
		}
	}
	if !spec.Selection[0].IsMerge() || spec.Selection[1].IsMerge() {
		t.Errorf("expected merged then muxed fallback: %+v", spec.Selection)
	}

	spec, err = SelectSpec(domain.ContainerVideo, "480", Known{})
	if err != nil || spec.Selection[0].Primary.MaxHeight != 480 {
		t.Errorf("bare height: %+v, %v", spec, err)
	}
}

func TestSelectSpecFormatID(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		known     Known
		wantMerge bool
	}{
		{name: "legacy muxed id", token: "formatId:18", wantMerge: false},
		{name: "id containing 18 still merges", token: "formatId:180", wantMerge: true},
		{name: "video-only id", token: "formatId:137", wantMerge: true},
		{name: "catalog muxed id", token: "formatId:22", known: Known{MuxedIDs: map[string]bool{"22": true}}, wantMerge: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := SelectSpec(domain.ContainerVideo, tt.token, tt.known)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := spec.Selection[0].IsMerge(); got != tt.wantMerge {
				t.Errorf("merge = %v, expected %v", got, tt.wantMerge)
			}
			if tt.wantMerge {
				if len(spec.Selection) != 2 || spec.Selection[0].Audio.Ext != "m4a" || spec.Selection[1].Audio.Ext != "" {
					t.Errorf("unexpected merge fallbacks: %+v", spec.Selection)
				}
			} else if len(spec.Selection) != 1 {
				t.Errorf("self-contained id must be used alone: %+v", spec.Selection)
			}
		})
	}
}

func TestSelectSpecInvalid(t *testing.T) {
	for _, token := range []string{"banana", "formatId:", "formatId:../x", "1", "00000p", "0p", "720pp", "best[ext=mp4]"} {
		t.Run(token, func(t *testing.T) {
			_, err := SelectSpec(domain.ContainerVideo, token, Known{})
			if !errors.Is(err, tmserrors.ErrInvalidSelection) {
				t.Errorf("token %q: expected invalid selection, got %v", token, err)
			}
		})
	}

	_, err := SelectSpec(domain.Container("webm"), "best", Known{})
	if !errors.Is(err, tmserrors.ErrInvalidContainer) {
		t.Errorf("expected invalid container, got %v", err)
	}
}

func TestSelectSpecAudioIgnoresToken(t *testing.T) {
	known := Known{TopAudioID: "140"}
	for _, token := range []string{"best", "1080p", "banana", "formatId:137"} {
		spec, err := SelectSpec(domain.ContainerAudio, token, known)
		if err != nil {
			t.Fatalf("token %q: audio must ignore token, got %v", token, err)
		}
		if spec.Ext != "mp3" || spec.ContentType != "audio/mpeg" || !spec.ExtractAudio {
			t.Errorf("unexpected audio packaging: %+v", spec)
		}
		if spec.Selection[0].Primary.FormatID != "140" || spec.Selection[0].Primary.Role != domain.RoleAudio {
			t.Errorf("expected top-ranked audio first: %+v", spec.Selection)
		}
		if last := spec.Selection[len(spec.Selection)-1]; last.Primary.FormatID != "" {
			t.Errorf("expected best-audio fallback last: %+v", last)
		}
	}

	spec, _ := SelectSpec(domain.ContainerAudio, "x", Known{})
	if len(spec.Selection) != 1 {
		t.Errorf("without catalog only best audio is requested: %+v", spec.Selection)
	}
}
