package config

import (
	"fmt"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

const (
	minChunkSize = 4 * 1024
	maxChunkSize = 8 * 1024 * 1024
)

func (c *Config) validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateTransferSettings(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return nil
}

func configError(message string, details map[string]any) error {
	return tmserrors.NewDomainError(tmserrors.ErrorTypeConfig, "configuration_invalid",
		"configuration validation failed: "+message).WithDetails(details)
}

func (c *Config) validateProvider() error {
	switch c.ProviderSettings.Name {
	case ProviderYTDLP:
		if c.ProviderSettings.YTDLPPath == "" {
			return configError("YTDLP_PATH must not be empty", nil)
		}
	case ProviderNative:
		if c.ProviderSettings.DirectStream {
			return configError("YTDLP_DIRECT_STREAM only applies to the ytdlp provider", nil)
		}
	default:
		return configError(fmt.Sprintf("unknown PROVIDER %q", c.ProviderSettings.Name), map[string]any{
			"allowed": []string{ProviderYTDLP, ProviderNative},
		})
	}

	if c.ProviderSettings.ResolveTimeout <= 0 {
		c.ProviderSettings.ResolveTimeout = DefaultResolveTimeout
	}
	return nil
}

func (c *Config) validateTransferSettings() error {
	size := c.TransferSettings.ChunkSize
	if size < minChunkSize || size > maxChunkSize {
		return configError("CHUNK_SIZE out of range", map[string]any{
			"min":    minChunkSize,
			"max":    maxChunkSize,
			"actual": size,
		})
	}

	if c.TransferSettings.StopTimeout <= 0 {
		c.TransferSettings.StopTimeout = DefaultStopTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.RequestsPerSecond < 0 {
		return configError("RATE_LIMIT_RPS cannot be negative", nil)
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return configError("RATE_LIMIT_BURST must be positive when rate limiting is enabled", nil)
	}
	return nil
}
