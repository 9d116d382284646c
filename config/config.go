/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package config initializes the process-wide configuration and logging.
package config

import (
	"os"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/resonate-audio/resonate/param"
)

func setDefaults() {
	viper.SetDefault(param.Server_Address.GetName(), "0.0.0.0")
	viper.SetDefault(param.Server_Port.GetName(), 8444)

	viper.SetDefault(param.Logging_Level.GetName(), "info")

	viper.SetDefault(param.Origin_Url.GetName(), "mongodb://localhost:27017")
	viper.SetDefault(param.Origin_Database.GetName(), "resonate")
	viper.SetDefault(param.Origin_Bucket.GetName(), "audio")
	viper.SetDefault(param.Origin_ResponseTimeout.GetName(), "30s")
	viper.SetDefault(param.Origin_InfoCacheTTL.GetName(), "5m")

	viper.SetDefault(param.Cache_DiskTTL.GetName(), "24h")
	viper.SetDefault(param.Cache_MemoryTTL.GetName(), "10m")
	viper.SetDefault(param.Cache_MemoryMaxEntries.GetName(), 100)
	viper.SetDefault(param.Cache_MaxChunkSize.GetName(), "1MiB")
	viper.SetDefault(param.Cache_DefaultChunkSize.GetName(), "512KiB")
}

// InitConfig wires up viper: defaults, the RESONATE_* environment
// overrides, and an optional YAML config file.  Called from the root
// cobra command before any subcommand runs.
func InitConfig(cfgFile string) error {
	setDefaults()

	viper.SetEnvPrefix("RESONATE")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("resonate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.resonate")
		viper.AddConfigPath("/etc/resonate")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read the configuration file")
		}
		// Missing config file is fine; defaults and env cover everything
	}

	setLogging()
	if viper.GetBool("Debug") {
		SetLogging(log.DebugLevel)
	}
	return nil
}

// InitServer validates server-side configuration and creates the cache
// directory.  Returns the error rather than exiting so tests can drive it.
func InitServer() error {
	cacheDir := param.Cache_DataLocation.GetString()
	if cacheDir == "" {
		return errors.New("Cache.DataLocation is not set; cannot determine where to place the disk cache's data")
	}
	if err := os.MkdirAll(cacheDir, os.FileMode(0755)); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	if _, err := GetChunkSize(param.Cache_DefaultChunkSize); err != nil {
		return err
	}
	if _, err := GetChunkSize(param.Cache_MaxChunkSize); err != nil {
		return err
	}
	return nil
}

// GetChunkSize parses a human-readable byte quantity (e.g. "512KiB")
// out of the given configuration parameter.
func GetChunkSize(p param.StringParam) (int64, error) {
	sizeStr := p.GetString()
	size, err := units.ParseStrictBytes(sizeStr)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid byte size %q for parameter %s", sizeStr, p.GetName())
	}
	if size <= 0 {
		return 0, errors.Errorf("parameter %s must be positive, got %q", p.GetName(), sizeStr)
	}
	return size, nil
}
