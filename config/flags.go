// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/journal/database/leveldb"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/journal/batchtracker"
	"github.com/ava-labs/journal/journal/blockcache"
	"github.com/ava-labs/journal/journal/completer"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/feed"
	"github.com/ava-labs/journal/journal/identity"
	"github.com/ava-labs/journal/journal/publisher"
	"github.com/ava-labs/journal/journal/validator"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/constants"
)

var defaultDataDir = filepath.Join("$HOME", "."+constants.AppName)

// BuildFlagSet returns every flag of the node.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(constants.AppName, pflag.ContinueOnError)
	fs.Bool(VersionKey, false, "If true, print version and quit")

	fs.String(ConfigFileKey, "", fmt.Sprintf("Specifies a config file. Ignored if %s is specified", ConfigFileContentKey))
	fs.String(ConfigFileContentKey, "", "Specifies base64 encoded config content")
	fs.String(DataDirKey, defaultDataDir, "Sets the base data directory where default sub-directories will be placed unless otherwise specified.")
	fs.String(GenesisFileKey, "", "Specifies the batches executed to create the genesis block. Required if the chain is empty")
	fs.String(KeyFileKey, filepath.Join(defaultDataDir, "keys", "validator.key"), "Path to the secp256k1 private key used to sign blocks. Created if it doesn't exist")

	// Database
	fs.String(DBTypeKey, leveldb.Name, fmt.Sprintf("Database type to use. Must be one of {%s, %s}", leveldb.Name, memdb.Name))
	fs.String(DBPathKey, filepath.Join(defaultDataDir, "db"), "Path to database directory")
	fs.Bool(DBReadOnlyKey, false, "If true, database writes are to memory and never persisted. May still initialize database directory/files on disk if they don't exist")

	// Logging
	fs.String(LogsDirKey, filepath.Join(defaultDataDir, "logs"), "Logging directory")
	fs.String(LogLevelKey, "info", "The log level. Should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogDisplayLevelKey, "", "The log display level. If left blank, will inherit the value of log-level. Otherwise, should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogFormatKey, "auto", "The structure of log format. Defaults to 'auto' which formats terminal-like logs, when the output is a terminal. Otherwise, should be one of {auto, plain, colors, json}")
	fs.Uint(LogRotaterMaxSize, 8, "The maximum file size in megabytes of the log file before it gets rotated.")
	fs.Uint(LogRotaterMaxFiles, 7, "The maximum number of old log files to retain. 0 means retain all old log files.")
	fs.Uint(LogRotaterMaxAge, 0, "The maximum number of days to retain old log files based on the timestamp encoded in their filename. 0 means retain all old log files.")
	fs.Bool(LogRotaterCompress, false, "Enables the compression of rotated log files through gzip.")
	fs.Bool(LogDisableDisplay, false, "Disables displaying logs in stdout.")

	// Journal
	fs.Duration(BlockCacheKeepTimeKey, blockcache.DefaultKeepTime, "How long an unused uncommitted block stays in the block cache")
	fs.Duration(BlockCachePurgeFrequencyKey, blockcache.DefaultPurgeFrequency, "Period of the block cache eviction sweep")
	fs.Duration(CompleterRetryIntervalKey, completer.DefaultRetryInterval, "Time between two requests for the same missing block or batch")
	fs.Int(CompleterMaxAttemptsKey, completer.DefaultMaxAttempts, "Number of requests for a missing dependency before the items waiting on it are dropped")
	fs.Int(CompleterSeenCacheSizeKey, completer.DefaultSeenCacheSize, "Number of released batches and transactions remembered for deduplication")
	fs.Int(ValidatorWorkersKey, validator.DefaultWorkers, "Number of blocks validated in parallel")
	fs.Int(ValidatorVerdictCacheKey, validator.DefaultVerdictCacheSize, "Number of block verdicts remembered")
	fs.Int(PublisherMaxBatchesKey, publisher.DefaultMaxBatchesPerBlock, "Maximum number of batches in a published block")
	fs.Duration(PublisherBuildIntervalKey, time.Second, "Period at which the node tries to build a block. 0 disables block production")
	fs.Uint64(StateUndoDepthKey, execution.DefaultUndoDepth, "Number of committed state roots that can be rolled back to")
	fs.Int(IdentityCacheSizeKey, identity.DefaultCacheSize, "Number of state roots whose block producer list is memoized")
	fs.Int(SubscriptionBufferSizeKey, feed.DefaultBufferSize, "Number of state deltas or events a subscriber may fall behind before it is dropped")
	fs.Int(InvalidBatchCacheSizeKey, batchtracker.DefaultInvalidCacheSize, "Number of invalid batches whose status is remembered")

	// Tracing
	fs.Bool(TracingEnabledKey, false, "If true, enable opentelemetry tracing")
	fs.String(TracingExporterTypeKey, trace.GRPC.String(), fmt.Sprintf("Type of exporter to use for tracing. Options are [%s, %s]", trace.GRPC, trace.HTTP))
	fs.String(TracingEndpointKey, "localhost:4317", "The endpoint to send trace data to")
	fs.Bool(TracingInsecureKey, true, "If true, don't use TLS when sending trace data")
	fs.Float64(TracingSampleRateKey, 0.1, "The fraction of traces to sample. If >= 1, always sample. If <= 0, never sample")
	fs.StringToString(TracingHeadersKey, map[string]string{}, "The headers to provide the trace indexer")

	return fs
}

// BuildViper returns the viper environment from parsing config file from
// default search paths and any parsed command line flags.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(constants.AppName)
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	// load node configs from flags or file
	switch {
	case v.IsSet(ConfigFileContentKey):
		configContentB64 := v.GetString(ConfigFileContentKey)
		configBytes, err := base64.StdEncoding.DecodeString(configContentB64)
		if err != nil {
			return nil, fmt.Errorf("unable to decode base64 content: %w", err)
		}
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewBuffer(configBytes)); err != nil {
			return nil, err
		}
	case v.IsSet(ConfigFileKey):
		filename := getExpandedArg(v, ConfigFileKey)
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// getExpandedArg gets the string in viper corresponding to [key] and expands
// any variables using the OS env. If the [DataDirKey] var is used, it will
// be replaced with the value of the data directory.
func getExpandedArg(v *viper.Viper, key string) string {
	return getExpandedString(v, v.GetString(key))
}

func getExpandedString(v *viper.Viper, s string) string {
	return os.Expand(
		s,
		func(strVar string) string {
			if strVar == DataDirKey {
				return os.ExpandEnv(v.GetString(DataDirKey))
			}
			return os.Getenv(strVar)
		},
	)
}
