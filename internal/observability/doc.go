// Package observability provides logging, metrics, and tracing for the
// gatekeeper.
//
// Logging is structured via zap behind the Logger interface. Loggers built
// by NewLogger implement LevelSetter so the level can follow configuration
// reloads:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Request-path metrics live in a dedicated Prometheus registry; Handler
// merges it with the default registry where component packages register
// their own collectors. Tracing uses OpenTelemetry with OTLP gRPC export.
package observability
