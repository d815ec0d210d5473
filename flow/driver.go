package flow

import (
	"context"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/internal/trace"
	"github.com/katalvlaran/vlsiflow/legalizer"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/placer"
	"github.com/katalvlaran/vlsiflow/router/detailed"
	"github.com/katalvlaran/vlsiflow/router/global"
	"github.com/katalvlaran/vlsiflow/verify"
	"github.com/rs/zerolog"
)

// Report aggregates every stage's own diagnostics for one Run.
type Report struct {
	Placer    placer.Report
	Legalizer legalizer.Report
	Global    global.Report
	Detailed  detailed.Report
}

// Run wires the full physical-design pipeline over store: placement (§4.1),
// legalization (§4.2), global routing (§4.4), detailed routing (§4.5), then
// verification (§4.6). Only a verifier failure is returned to the caller;
// every earlier stage's error is logged as a warning and the pipeline
// proceeds to the next stage regardless, per spec §4.7.
func Run(ctx context.Context, store *netlist.Store, cfg config.Config, log zerolog.Logger) (Report, error) {
	var report Report

	sp := trace.Start("placer")
	placerReport, err := placer.Optimize(store, cfg, log)
	report.Placer = placerReport
	log.Debug().Dur("elapsed", sp.Elapsed()).Msg("placer done")
	if err != nil {
		log.Warn().Err(err).Msg("placer reported an error, continuing")
	}

	sp = trace.Start("legalizer")
	legalizerReport, err := legalizer.Legalize(store, cfg, log)
	report.Legalizer = legalizerReport
	log.Debug().Dur("elapsed", sp.Elapsed()).Msg("legalizer done")
	if err != nil {
		log.Warn().Err(err).Msg("legalizer reported an error, continuing")
	}

	sp = trace.Start("global router")
	gr := global.NewRouter(store, cfg, log)
	guides, globalReport, err := gr.Route(ctx)
	report.Global = globalReport
	log.Debug().Dur("elapsed", sp.Elapsed()).Msg("global router done")
	if err != nil {
		log.Warn().Err(err).Msg("global router reported an error, continuing")
	}

	sp = trace.Start("detailed router")
	dr := detailed.NewRouter(store, cfg, cfg.GRGcellSize, guides, log)
	_, detailedReport, err := dr.Route(ctx)
	report.Detailed = detailedReport
	log.Debug().Dur("elapsed", sp.Elapsed()).Msg("detailed router done")
	if err != nil {
		log.Warn().Err(err).Msg("detailed router reported an error, continuing")
	}

	sp = trace.Start("verify")
	err = verify.Check(store, cfg)
	log.Debug().Dur("elapsed", sp.Elapsed()).Msg("verify done")
	if err != nil {
		log.Error().Err(err).Msg("verification failed")
		return report, err
	}

	return report, nil
}
