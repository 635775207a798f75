// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ava-labs/journal/database/factory"
	"github.com/ava-labs/journal/journal"
	"github.com/ava-labs/journal/journal/blockcache"
	"github.com/ava-labs/journal/journal/completer"
	"github.com/ava-labs/journal/journal/genesis"
	"github.com/ava-labs/journal/journal/publisher"
	"github.com/ava-labs/journal/journal/validator"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/constants"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/version"
)

var (
	errNegativeDuration  = errors.New("duration must be non-negative")
	errNonPositiveNumber = errors.New("must be positive")
)

type Config struct {
	DisplayVersionAndExit bool `json:"-"`

	DataDir        string                 `json:"dataDir"`
	KeyPath        string                 `json:"keyPath"`
	GenesisPath    string                 `json:"genesisPath"`
	DatabaseConfig factory.DatabaseConfig `json:"databaseConfig"`
	LoggingConfig  logging.Config         `json:"loggingConfig"`
	TraceConfig    trace.Config           `json:"traceConfig"`

	// BuildInterval is the period at which blocks are built. 0 disables
	// block production.
	BuildInterval time.Duration `json:"buildInterval"`

	// JournalConfig.Genesis is filled from GenesisPath.
	JournalConfig journal.Config `json:"-"`
}

// GetConfig reads the node config out of [v].
func GetConfig(v *viper.Viper) (Config, error) {
	config := Config{
		DisplayVersionAndExit: v.GetBool(VersionKey),
		DataDir:               getExpandedArg(v, DataDirKey),
		KeyPath:               getExpandedArg(v, KeyFileKey),
		GenesisPath:           getExpandedArg(v, GenesisFileKey),
		DatabaseConfig: factory.DatabaseConfig{
			ReadOnly: v.GetBool(DBReadOnlyKey),
			Path:     filepath.Join(getExpandedArg(v, DBPathKey), v.GetString(DBTypeKey)),
			Name:     v.GetString(DBTypeKey),
		},
		BuildInterval: v.GetDuration(PublisherBuildIntervalKey),
	}
	if config.DisplayVersionAndExit {
		return config, nil
	}
	if config.BuildInterval < 0 {
		return Config{}, fmt.Errorf("%q %w", PublisherBuildIntervalKey, errNegativeDuration)
	}

	var err error
	config.LoggingConfig, err = getLoggingConfig(v)
	if err != nil {
		return Config{}, err
	}
	config.TraceConfig, err = getTraceConfig(v)
	if err != nil {
		return Config{}, err
	}
	config.JournalConfig, err = getJournalConfig(v)
	if err != nil {
		return Config{}, err
	}
	if config.GenesisPath != "" {
		config.JournalConfig.Genesis, err = genesis.Load(config.GenesisPath)
		if err != nil {
			return Config{}, fmt.Errorf("couldn't load genesis from %s: %w", config.GenesisPath, err)
		}
	}
	return config, nil
}

func getLoggingConfig(v *viper.Viper) (logging.Config, error) {
	loggingConfig := logging.Config{
		RotatingWriterConfig: logging.RotatingWriterConfig{
			MaxSize:   int(v.GetUint(LogRotaterMaxSize)),
			MaxFiles:  int(v.GetUint(LogRotaterMaxFiles)),
			MaxAge:    int(v.GetUint(LogRotaterMaxAge)),
			Directory: getExpandedArg(v, LogsDirKey),
			Compress:  v.GetBool(LogRotaterCompress),
		},
		DisableWriterDisplaying: v.GetBool(LogDisableDisplay),
	}

	var err error
	loggingConfig.LogLevel, err = logging.ToLevel(v.GetString(LogLevelKey))
	if err != nil {
		return loggingConfig, err
	}

	logDisplayLevel := v.GetString(LogLevelKey)
	if v.IsSet(LogDisplayLevelKey) && v.GetString(LogDisplayLevelKey) != "" {
		logDisplayLevel = v.GetString(LogDisplayLevelKey)
	}
	loggingConfig.DisplayLevel, err = logging.ToLevel(logDisplayLevel)
	if err != nil {
		return loggingConfig, err
	}

	loggingConfig.LogFormat, err = logging.ToFormat(v.GetString(LogFormatKey), os.Stdout.Fd())
	return loggingConfig, err
}

func getTraceConfig(v *viper.Viper) (trace.Config, error) {
	if !v.GetBool(TracingEnabledKey) {
		return trace.Config{}, nil
	}

	exporterType, err := trace.ExporterTypeFromString(v.GetString(TracingExporterTypeKey))
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     exporterType,
			Endpoint: v.GetString(TracingEndpointKey),
			Insecure: v.GetBool(TracingInsecureKey),
			Headers:  v.GetStringMapString(TracingHeadersKey),
		},
		Enabled:         true,
		TraceSampleRate: v.GetFloat64(TracingSampleRateKey),
		AppName:         constants.AppName,
		Version:         version.Current.Semantic(),
	}, nil
}

func getJournalConfig(v *viper.Viper) (journal.Config, error) {
	config := journal.Config{
		Cache: blockcache.Config{
			KeepTime:       v.GetDuration(BlockCacheKeepTimeKey),
			PurgeFrequency: v.GetDuration(BlockCachePurgeFrequencyKey),
		},
		Completer: completer.Config{
			RetryInterval: v.GetDuration(CompleterRetryIntervalKey),
			MaxAttempts:   v.GetInt(CompleterMaxAttemptsKey),
			SeenCacheSize: v.GetInt(CompleterSeenCacheSizeKey),
		},
		Validator: validator.Config{
			Workers:          v.GetInt(ValidatorWorkersKey),
			VerdictCacheSize: v.GetInt(ValidatorVerdictCacheKey),
		},
		Publisher: publisher.Config{
			MaxBatchesPerBlock: v.GetInt(PublisherMaxBatchesKey),
		},
		UndoDepth:              v.GetUint64(StateUndoDepthKey),
		IdentityCacheSize:      v.GetInt(IdentityCacheSizeKey),
		SubscriptionBufferSize: v.GetInt(SubscriptionBufferSizeKey),
		InvalidBatchCacheSize:  v.GetInt(InvalidBatchCacheSizeKey),
	}

	for key, d := range map[string]time.Duration{
		BlockCacheKeepTimeKey:       config.Cache.KeepTime,
		BlockCachePurgeFrequencyKey: config.Cache.PurgeFrequency,
		CompleterRetryIntervalKey:   config.Completer.RetryInterval,
	} {
		if d <= 0 {
			return journal.Config{}, fmt.Errorf("%q %w", key, errNonPositiveNumber)
		}
	}
	for key, n := range map[string]int{
		CompleterMaxAttemptsKey:   config.Completer.MaxAttempts,
		CompleterSeenCacheSizeKey: config.Completer.SeenCacheSize,
		ValidatorWorkersKey:       config.Validator.Workers,
		ValidatorVerdictCacheKey:  config.Validator.VerdictCacheSize,
		PublisherMaxBatchesKey:    config.Publisher.MaxBatchesPerBlock,
		IdentityCacheSizeKey:      config.IdentityCacheSize,
		SubscriptionBufferSizeKey: config.SubscriptionBufferSize,
		InvalidBatchCacheSizeKey:  config.InvalidBatchCacheSize,
	} {
		if n <= 0 {
			return journal.Config{}, fmt.Errorf("%q %w", key, errNonPositiveNumber)
		}
	}
	if config.UndoDepth == 0 {
		return journal.Config{}, fmt.Errorf("%q %w", StateUndoDepthKey, errNonPositiveNumber)
	}
	return config, nil
}

// Load parses [args] and any config file they name.
func Load(args []string) (Config, error) {
	v, err := BuildViper(BuildFlagSet(), args)
	if err != nil {
		return Config{}, err
	}
	return GetConfig(v)
}
