package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"ethwallet/pkg/config"
	"ethwallet/pkg/models"
	"ethwallet/pkg/rpc"
)

const probeTimeout = 10 * time.Second

type checkOptions struct {
	json   bool
	dryRun bool
}

// runCheck probes every configured network and reports chain id, latency and
// mismatches. Chain ids missing from the file are filled in from the node and
// saved unless dryRun is set. fileCfg is the configuration as read from path;
// cfg is the effective configuration used for probing.
func runCheck(ctx context.Context, out io.Writer, path string, fileCfg, cfg config.Config, dial rpc.Dialer, opts checkOptions) models.CheckReport {
	report := models.CheckReport{ConfigPath: path, ValidStructure: true, DryRun: opts.dryRun}
	say := func(format string, args ...interface{}) {
		if !opts.json {
			fmt.Fprintf(out, format, args...)
		}
	}

	say("Testing configuration at: %s\n", path)

	if problems := structureErrors(cfg); len(problems) > 0 {
		report.ValidStructure = false
		report.StructureErrors = problems
		for _, p := range problems {
			say("Error: %s\n", p)
		}
		return report
	}

	say("Found %d networks.\n", len(cfg.Networks))

	for i, n := range cfg.Networks {
		nc := models.NetworkCheck{ID: n.ID, RPCURL: n.RPCURL, ConfigChainID: n.ChainID}
		say("Testing network: %s (%s)\n  RPC: %s ... ", n.DisplayName, n.ID, n.RPCURL)

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		observed, err := rpc.ProbeChainID(probeCtx, dial, n.RPCURL)
		cancel()
		if err != nil {
			nc.Status = "error"
			nc.Error = err.Error()
			say("Failed: %v\n", err)
			report.Networks = append(report.Networks, nc)
			continue
		}

		nc.Status = "ok"
		nc.ObservedChainID = observed
		say("OK (ChainID: %d)", observed)

		if lat, err := rpc.FetchRPCLatency(ctx, dial, n.RPCURL); err == nil {
			nc.LatencyMs = lat.Latency.Milliseconds()
			say(" %dms", nc.LatencyMs)
		}

		switch {
		case n.ChainID == 0:
			cfg.Networks[i].ChainID = observed
			if i < len(fileCfg.Networks) && fileCfg.Networks[i].ID == n.ID {
				fileCfg.Networks[i].ChainID = observed
			}
			nc.ChainIDUpdated = true
			report.ConfigUpdated = true
			say(" - UPDATED CONFIG")
			if opts.dryRun {
				say(" (DRY RUN)")
			}
		case n.ChainID != observed:
			nc.Mismatch = true
			report.MismatchNetworks = append(report.MismatchNetworks, n.ID)
			say(" - MISMATCH! Expected %d", n.ChainID)
		default:
			say(" - Verified")
		}
		say("\n")
		report.Networks = append(report.Networks, nc)
	}

	if len(report.MismatchNetworks) > 0 {
		say("\nWARNING: these networks answer with a different chain id than configured:\n")
		for _, id := range report.MismatchNetworks {
			say(" - %s\n", id)
		}
	}

	if report.ConfigUpdated {
		say("\nUpdating configuration with fetched chain ids...\n")
		if opts.dryRun {
			say("Dry run enabled: configuration NOT saved.\n")
		} else if err := config.SaveConfig(fileCfg, path); err != nil {
			report.SaveError = err.Error()
			say("Failed to save config: %v\n", err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}
	return report
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// structureErrors ignores missing chain ids, which check fills in itself.
func structureErrors(cfg config.Config) []string {
	var problems []string
	for _, p := range cfg.StructureErrors() {
		if strings.HasSuffix(p, "has no chain id") {
			continue
		}
		problems = append(problems, p)
	}
	return problems
}

// checkFailed is the exit condition of the check command.
func checkFailed(r models.CheckReport) bool {
	if !r.ValidStructure || r.SaveError != "" || len(r.MismatchNetworks) > 0 {
		return true
	}
	for _, n := range r.Networks {
		if n.Status != "ok" {
			return true
		}
	}
	return false
}
