// Package ytdlp resolves metadata and streams media through the yt-dlp executable.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	goytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/process"
	"github.com/NikitaDmitryuk/media-relay/internal/provider"
	"github.com/NikitaDmitryuk/media-relay/internal/provider/direct"
)

const (
	Name = "ytdlp"

	stdoutSentinel   = "-"
	bestAudioQuality = "0"
)

type Options struct {
	Executable     string
	ChunkSize      int
	StopTimeout    time.Duration
	ResolveTimeout time.Duration
	// DirectStream fetches single-stream selections over HTTP instead of piping through yt-dlp.
	DirectStream bool
	HTTPClient   *resty.Client
}

type Provider struct {
	opts Options
}

func New(opts Options) *Provider {
	if opts.Executable == "" {
		opts.Executable = "yt-dlp"
	}
	if opts.DirectStream && opts.HTTPClient == nil {
		opts.HTTPClient = direct.NewClient(nil)
	}
	return &Provider{opts: opts}
}

func (*Provider) Name() string { return Name }

func (p *Provider) command(cred domain.Credential) *goytdlp.Command {
	cmd := goytdlp.New().
		SetExecutable(p.opts.Executable).
		NoWarnings().
		NoCheckCertificates().
		NoPlaylist()
	if cred.Present() {
		cmd = cmd.Cookies(cred.Path)
	}
	return cmd
}

// Metadata runs a single-JSON dump for url.
func (p *Provider) Metadata(ctx context.Context, url string, cred domain.Credential) (*domain.RawMetadata, error) {
	if p.opts.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ResolveTimeout)
		defer cancel()
	}

	started := time.Now()
	res, err := p.command(cred).DumpSingleJSON().Run(ctx, url)
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, provider.ResolutionError(err, stderr)
	}

	meta, err := ParseMetadata([]byte(res.Stdout))
	if err != nil {
		return nil, provider.ResolutionError(err, "")
	}

	logutils.Log.WithFields(logrus.Fields{
		"url":     url,
		"formats": len(meta.Formats),
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
	}).Debug("Metadata fetched")
	return meta, nil
}

// ParseMetadata decodes a yt-dlp single JSON dump.
func ParseMetadata(data []byte) (*domain.RawMetadata, error) {
	var meta domain.RawMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp metadata: %w", err)
	}
	return &meta, nil
}

// StreamArgs builds the yt-dlp invocation for spec, writing the media to stdout.
func (p *Provider) StreamArgs(spec domain.FetchSpec, cred domain.Credential) *goytdlp.Command {
	cmd := p.command(cred).
		Format(RenderSelection(spec.Selection)).
		Output(stdoutSentinel)

	if spec.ExtractAudio {
		return cmd.ExtractAudio().
			AudioFormat(spec.Ext).
			AudioQuality(bestAudioQuality)
	}
	if spec.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(spec.MergeFormat)
	}
	return cmd
}

// CommandArgs flattens the builder's flags into an argv, followed by the positional args.
func CommandArgs(cmd *goytdlp.Command, args ...string) []string {
	var argv []string
	for _, f := range cmd.GetFlagConfig().ToFlags() {
		argv = append(argv, f.Raw()...)
	}
	return append(argv, args...)
}

// StreamCommand builds the process that writes the media for spec to stdout.
func (p *Provider) StreamCommand(
	ctx context.Context,
	url string,
	spec domain.FetchSpec,
	cred domain.Credential,
) *exec.Cmd {
	return exec.CommandContext(ctx, p.opts.Executable, CommandArgs(p.StreamArgs(spec, cred), url)...)
}

// Open starts the stream for spec.
func (p *Provider) Open(
	ctx context.Context,
	url string,
	spec domain.FetchSpec,
	cred domain.Credential,
) (domain.ByteSource, domain.StreamInfo, error) {
	if len(spec.Selection) == 0 {
		return nil, domain.StreamInfo{}, provider.UnsupportedSelection(Name, "empty selection")
	}

	if p.directEligible(spec) {
		src, info, err := p.openDirect(ctx, url, spec, cred)
		if err == nil {
			return src, info, nil
		}
		logutils.Log.WithError(err).WithField("url", url).Warn("Direct stream unavailable, falling back to yt-dlp output")
	}

	src, err := process.Start(p.StreamCommand(ctx, url, spec, cred), process.Options{
		ChunkSize:   p.opts.ChunkSize,
		StopTimeout: p.opts.StopTimeout,
	})
	if err != nil {
		return nil, domain.StreamInfo{}, err
	}

	logutils.Log.WithFields(logrus.Fields{
		"pid":    src.Pid(),
		"format": RenderSelection(spec.Selection),
		"merge":  spec.Selection[0].IsMerge(),
	}).Info("yt-dlp stream started")
	return src, domain.StreamInfo{}, nil
}

// directEligible holds when the preferred alternative is one stream yt-dlp would not re-encode.
func (p *Provider) directEligible(spec domain.FetchSpec) bool {
	return p.opts.DirectStream && !spec.ExtractAudio && !spec.Selection[0].IsMerge()
}

func (p *Provider) openDirect(
	ctx context.Context,
	url string,
	spec domain.FetchSpec,
	cred domain.Credential,
) (domain.ByteSource, domain.StreamInfo, error) {
	first := domain.Selection{spec.Selection[0]}

	resolveCtx := ctx
	if p.opts.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, p.opts.ResolveTimeout)
		defer cancel()
	}

	res, err := p.command(cred).Format(RenderSelection(first)).GetURL().Run(resolveCtx, url)
	if err != nil {
		return nil, domain.StreamInfo{}, fmt.Errorf("failed to resolve direct url: %w", err)
	}

	mediaURL := firstLine(res.Stdout)
	if mediaURL == "" {
		return nil, domain.StreamInfo{}, errors.New("yt-dlp returned no direct url")
	}

	src, info, err := direct.Open(ctx, p.opts.HTTPClient, mediaURL, p.opts.ChunkSize)
	if err != nil {
		return nil, domain.StreamInfo{}, err
	}
	logutils.Log.WithField("expected_bytes", info.ExpectedBytes).Info("Direct stream started")
	return src, info, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
