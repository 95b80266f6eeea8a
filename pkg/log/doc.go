/*
Package log provides structured logging for anvil using zerolog.

A single global Logger is configured once via Init and shared by every
package. Component loggers (WithComponent, WithAssetID, WithJobID,
WithArtifactID) attach context fields without threading a logger through
every function signature.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	importLog := log.WithComponent("importer")
	importLog.Info().Str("asset_id", id.String()).Msg("import complete")

JSON output is for the build/loader binaries running unattended; console
output (human-readable, colorized) is for interactive `anvil` invocations.

# Don't

Don't log asset property values or import-data payload bytes at Info level —
they can be arbitrarily large. Log ids, paths and counts; log payloads only
at Debug level and only when diagnosing a specific job.
*/
package log
