// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	ConfigFileKey        = "config-file"
	ConfigFileContentKey = "config-file-content"
	VersionKey           = "version"
	DataDirKey           = "data-dir"
	GenesisFileKey       = "genesis-file"
	KeyFileKey           = "key-file"

	DBTypeKey     = "db-type"
	DBPathKey     = "db-dir"
	DBReadOnlyKey = "db-read-only"

	LogsDirKey         = "log-dir"
	LogLevelKey        = "log-level"
	LogDisplayLevelKey = "log-display-level"
	LogFormatKey       = "log-format"
	LogRotaterMaxSize  = "log-rotater-max-size"
	LogRotaterMaxFiles = "log-rotater-max-files"
	LogRotaterMaxAge   = "log-rotater-max-age"
	LogRotaterCompress = "log-rotater-compress-enabled"
	LogDisableDisplay  = "log-disable-display-plugin-logs"

	BlockCacheKeepTimeKey       = "block-cache-keep-time"
	BlockCachePurgeFrequencyKey = "block-cache-purge-frequency"
	CompleterRetryIntervalKey   = "completer-retry-interval"
	CompleterMaxAttemptsKey     = "completer-max-attempts"
	CompleterSeenCacheSizeKey   = "completer-seen-cache-size"
	ValidatorWorkersKey         = "validator-workers"
	ValidatorVerdictCacheKey    = "validator-verdict-cache-size"
	PublisherMaxBatchesKey      = "publisher-max-batches-per-block"
	PublisherBuildIntervalKey   = "publisher-build-interval"
	StateUndoDepthKey           = "state-undo-depth"
	IdentityCacheSizeKey        = "identity-cache-size"
	SubscriptionBufferSizeKey   = "subscription-buffer-size"
	InvalidBatchCacheSizeKey    = "invalid-batch-cache-size"

	TracingEnabledKey      = "tracing-enabled"
	TracingExporterTypeKey = "tracing-exporter-type"
	TracingEndpointKey     = "tracing-endpoint"
	TracingInsecureKey     = "tracing-insecure"
	TracingSampleRateKey   = "tracing-sample-rate"
	TracingHeadersKey      = "tracing-headers"
)
