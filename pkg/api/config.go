package api

import (
	"errors"
	"strings"

	"github.com/carverauto/devicematch/pkg/logger"
)

const (
	defaultListenAddr      = ":8090"
	defaultTemplatesBucket = "devicematch-templates"
)

var errBucketWithoutNats = errors.New("templates_bucket requires nats_url")

// Config is the matcher daemon configuration.
type Config struct {
	ListenAddr      string         `json:"listen_addr"`
	APIKey          string         `json:"api_key"`
	NatsURL         string         `json:"nats_url"`
	TemplatesBucket string         `json:"templates_bucket"`
	Logger          *logger.Config `json:"logger"`
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.NatsURL == "" && c.TemplatesBucket != "" {
		return errBucketWithoutNats
	}

	if c.NatsURL != "" && c.TemplatesBucket == "" {
		c.TemplatesBucket = defaultTemplatesBucket
	}

	return nil
}
