package main

import (
	"os"

	"github.com/docker/go-units"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudmirror/cloudmirror/internal/batch"
	"github.com/cloudmirror/cloudmirror/internal/config"
	"github.com/cloudmirror/cloudmirror/internal/engine"
	"github.com/cloudmirror/cloudmirror/internal/manifest"
	"github.com/cloudmirror/cloudmirror/internal/publish"
	"github.com/cloudmirror/cloudmirror/internal/report"
	"github.com/cloudmirror/cloudmirror/internal/runid"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

func runReplicate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if sourceOverride != "" {
		cfg.SourceDir = sourceOverride
	}
	if reportOverride != "" {
		cfg.ReportPath = reportOverride
	}
	if expiryOverride > 0 {
		cfg.URLExpiry = expiryOverride
	}

	run := runid.New()
	rlog := log.With().Str("run", run).Logger()

	items, err := batch.Scan(cfg.SourceDir, cfg.Exclude)
	if err != nil {
		return err
	}
	rlog.Info().
		Str("dir", cfg.SourceDir).
		Int("files", len(items)).
		Str("size", units.BytesSize(float64(batch.TotalSize(items)))).
		Msg("scanned source directory")

	handles := target.ConnectAll(ctx, cfg.Targets)

	eng := engine.New(engine.Config{
		PartSize:        cfg.PartSize,
		PartConcurrency: cfg.PartConcurrency,
		TransferTimeout: cfg.TransferTimeout,
		ProgressOut:     os.Stderr,
	}, rlog)

	res, err := eng.Run(ctx, handles, items)
	if res != nil {
		report.WriteSummary(os.Stdout, res)
	}
	if err != nil {
		return err
	}

	m := manifest.FromRun(run, Version, cfg.SourceDir, items, handles, res)
	if err := manifest.Save(cfg.ManifestPath, m); err != nil {
		rlog.Warn().Err(err).Msg("could not write run manifest")
	}

	if noLinks {
		return nil
	}

	pub := publish.New(cfg.URLExpiry, rlog)
	groups := pub.Publish(ctx, handles, res.Ledger)
	if len(groups) == 0 {
		rlog.Warn().Msg("nothing uploaded, no URLs to generate")
		return nil
	}

	report.WriteLinks(os.Stdout, groups, pub.Expiry())
	if err := report.SaveLinks(cfg.ReportPath, groups, pub.Expiry()); err != nil {
		return err
	}
	rlog.Info().Str("path", cfg.ReportPath).Msg("saved presigned URLs")
	return nil
}
