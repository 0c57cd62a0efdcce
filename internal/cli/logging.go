package cli

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmora/toolbridge/config"
)

// ConfigureLogging sets up the standard logger. Results go to stdout, so
// logs are written to out (normally stderr).
func ConfigureLogging(cfg config.LogConfig, out io.Writer) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log.level")
	}
	log.SetLevel(lvl)
	log.SetOutput(out)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return nil
}
