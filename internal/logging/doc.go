// Package logging provides the leveled logger used across reel-server.
//
// Levels, from most to least verbose:
//   - DEBUG: stage transitions, engine progress, resolver command lines
//   - INFO: job lifecycle, sweeps, startup configuration
//   - WARN: recoverable problems (cleanup failures, slow probes)
//   - ERROR: failed jobs and handler errors
//   - FATAL: startup errors that terminate the process
//
// The level comes from LOG_LEVEL, or DEBUG=true as a shortcut. Job-scoped
// lines are written through a prefixed Logger obtained from With, e.g.
//
//	log := logging.With("job " + id)
//	log.Info("staged %d bytes", n)
package logging
