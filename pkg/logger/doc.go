// Package logger provides the structured logging interface used across
// mediamirror.
//
// It wraps zerolog with a small interface supporting levels, attached fields,
// and per-call field maps. Console output is colored; when a log file is
// configured, lines are also written there as JSON and rotated by size.
//
// There is no package-level logger. Construct one from configuration and pass
// it to every component that logs:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	sess := session.New(opts, log.WithField("component", "session"))
//
// Tests use NewNopLogger or NewTestLogger, which captures messages for
// assertions.
package logger
