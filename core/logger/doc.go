// Package logger builds structured slog loggers for the gateway binaries
// and provides attribute helpers shared across components.
//
// # Usage
//
//	log := logger.New(
//		logger.WithProduction("payment-eapi"),
//		logger.WithContextExtractors(middleware.CorrelationIDExtractor),
//	)
//
//	log.Info("server starting",
//		logger.Component("server"),
//		logger.Event("startup"),
//	)
//
// Context extractors enrich records emitted through the *Context methods,
// which is how the correlation id set by the HTTP middleware reaches every
// log line of a request without being threaded by hand.
//
// Attribute helpers are nil-safe: logger.Error(nil) yields an empty
// attribute that slog drops, so call sites stay unconditional.
package logger
