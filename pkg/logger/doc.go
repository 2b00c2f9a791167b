// Package logger provides a context-aware wrapper around log/slog with
// functional options for configuration and helper attribute constructors.
//
// New builds a *slog.Logger from Option values: output format (text or json),
// minimum level, static attributes and ContextExtractor callbacks that inject
// attributes from a context.Context on every record. Environment presets
// (WithDevelopment, WithStaging, WithProduction, WithEnvironment) pick sensible
// defaults per deployment.
//
// Attribute helpers in attr.go keep key names consistent across the pipeline:
//
//	log.LogAttrs(ctx, slog.LevelWarn, "failed to persist history",
//	    logger.Component("history"),
//	    logger.Key(key),
//	    logger.Error(err),
//	)
//
// Error returns an empty attribute for nil errors, so it can be passed
// unconditionally.
package logger
