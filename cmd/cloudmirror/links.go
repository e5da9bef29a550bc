package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudmirror/cloudmirror/internal/config"
	"github.com/cloudmirror/cloudmirror/internal/publish"
	"github.com/cloudmirror/cloudmirror/internal/report"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

// runLinks regenerates presigned URLs for whatever already sits in each
// enabled target's bucket, without uploading anything.
func runLinks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if expiryOverride > 0 {
		cfg.URLExpiry = expiryOverride
	}

	handles := target.ConnectAll(ctx, cfg.Targets)
	pub := publish.New(cfg.URLExpiry, log.Logger)

	var groups []publish.TargetLinks
	for _, h := range handles {
		if h.Client == nil {
			if h.Err != nil {
				log.Warn().Str("target", h.Config.Name).Err(h.Err).Msg("target unavailable, skipping")
			}
			continue
		}
		objects, err := h.Client.List(ctx)
		if err != nil {
			log.Warn().Str("target", h.Config.Name).Err(err).Msg("listing failed, skipping")
			continue
		}
		if len(objects) == 0 {
			log.Info().Str("target", h.Config.Name).Msg("bucket is empty")
			continue
		}
		keys := make([]string, 0, len(objects))
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
		groups = append(groups, pub.ForKeys(ctx, h, keys))
	}

	if len(groups) == 0 {
		return fmt.Errorf("no objects found on any target")
	}

	report.WriteLinks(os.Stdout, groups, pub.Expiry())
	if err := report.SaveLinks(cfg.ReportPath, groups, pub.Expiry()); err != nil {
		return err
	}
	log.Info().Str("path", cfg.ReportPath).Msg("saved presigned URLs")
	return nil
}
