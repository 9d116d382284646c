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

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/resonate-audio/resonate/config"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "resonate",
		Short: "Audio delivery and caching server",
		Long: "Resonate serves ranged audio content out of a MongoDB GridFS " +
			"origin, caching hot byte ranges in memory and whole files on disk.",
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		if err := config.InitConfig(cfgFile); err != nil {
			log.Errorln("Failed to initialize the configuration:", err)
		}
	})

	rootCmd.AddCommand(serveCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.resonate/resonate.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	if err := viper.BindPFlag("Debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(err)
	}
}
