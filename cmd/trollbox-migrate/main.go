// Command trollbox-migrate replays a legacy referral flat file into the v2
// two-way ledger shape. Conflicting legacy entries are logged and skipped
// (earliest mapping wins); the batch itself never fails on a conflict.
package main

import (
	"flag"
	"log/slog"
	"os"

	"trollbox/internal/referral"
)

func main() {
	in := flag.String("in", "", "path to legacy referral file")
	out := flag.String("out", "data/referrals.json", "path to write the v2 ledger")
	merge := flag.String("merge", "", "optional existing v2 ledger to merge into first")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *in == "" {
		logger.Error("-in is required")
		os.Exit(1)
	}

	ledger := referral.NewLedger(logger)

	if *merge != "" {
		if err := ledger.LoadFile(*merge); err != nil {
			logger.Error("failed to load existing ledger", "path", *merge, "error", err)
			os.Exit(1)
		}
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("failed to read legacy file", "path", *in, "error", err)
		os.Exit(1)
	}

	records, err := referral.ParseLegacy(data)
	if err != nil {
		logger.Error("failed to parse legacy file", "path", *in, "error", err)
		os.Exit(1)
	}

	result := ledger.Migrate(records)
	logger.Info("migration complete",
		"codes_recorded", result.CodesRecorded,
		"attributed", result.Attributed,
		"conflicts", result.Conflicts,
	)

	if err := ledger.SaveFile(*out); err != nil {
		logger.Error("failed to write ledger", "path", *out, "error", err)
		os.Exit(1)
	}

	stats := ledger.Stats()
	logger.Info("ledger written",
		"path", *out,
		"referrers", stats.Referrers,
		"referred", stats.Referred,
	)
}
