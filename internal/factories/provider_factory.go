package factories

import (
	"fmt"

	"github.com/NikitaDmitryuk/media-relay/internal/config"
	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/provider/native"
	"github.com/NikitaDmitryuk/media-relay/internal/provider/ytdlp"
)

// NewProvider builds the metadata and stream backend selected by configuration.
func NewProvider(cfg *config.Config) (domain.Provider, error) {
	ps := cfg.GetProviderSettings()
	ts := cfg.GetTransferSettings()

	var p domain.Provider
	switch ps.Name {
	case config.ProviderYTDLP, "":
		p = ytdlp.New(ytdlp.Options{
			Executable:     ps.YTDLPPath,
			ChunkSize:      ts.ChunkSize,
			StopTimeout:    ts.StopTimeout,
			ResolveTimeout: ps.ResolveTimeout,
			DirectStream:   ps.DirectStream,
		})
	case config.ProviderNative:
		p = native.New(native.Options{ChunkSize: ts.ChunkSize})
	default:
		return nil, tmserrors.NewDomainError(tmserrors.ErrorTypeConfig, "unknown_provider",
			fmt.Sprintf("unknown provider %q", ps.Name))
	}

	logutils.Log.WithField("provider", p.Name()).Info("Media provider configured")
	return p, nil
}
