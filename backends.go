/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/rs/zerolog/log"
)

func newSupplier(cfg *Config) (questions.Supplier, error) {
	if cfg.questionSource == sourceFile {
		bank, err := questions.LoadBank(cfg.questionFile)
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("file", cfg.questionFile).
			Int("questions", bank.Len()).
			Msg("loaded question bank")

		return bank, nil
	}

	log.Info().Str("url", cfg.opentdbURL).Msg("using Open Trivia Database")

	return questions.NewOpenTDB(cfg.opentdbURL, cfg.fetchTimeout), nil
}

// newRecorder returns the result recorder and a function releasing it.
func newRecorder(cfg *Config) (stats.Recorder, func(), error) {
	if cfg.natsURL == "" {
		if cfg.verbose {
			return stats.Logger{}, func() {}, nil
		}

		return stats.Nop{}, func() {}, nil
	}

	rec, err := stats.DialNATS(cfg.natsURL, cfg.natsSubject)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("url", cfg.natsURL).
		Str("subject", cfg.natsSubject).
		Msg("publishing results to NATS")

	return rec, func() {
		if err := rec.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}, nil
}
