package cli

import (
	"github.com/cockroachdb/errors"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/store"
	"github.com/uplift-labs/uplift/internal/telemetry"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer s.Close()

	return fn(s)
}

// withEngine builds an experiment engine on top of the database. Telemetry
// goes to the structured log, plus Segment when a write key is configured.
func withEngine(fn func(*experiment.Engine, *store.SQLiteStore) error) error {
	return withStore(func(s *store.SQLiteStore) error {
		log := cfg.Logger()
		sink := telemetry.MultiSink{telemetry.NewLogSink(log)}
		if cfg.SegmentWriteKey != "" {
			segmentSink := telemetry.NewSegmentSink(cfg.SegmentWriteKey, log)
			defer segmentSink.Close()
			sink = append(sink, segmentSink)
		}
		return fn(experiment.New(s, sink, log), s)
	})
}
