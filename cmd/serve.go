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
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/resonate-audio/resonate/config"
	"github.com/resonate-audio/resonate/launchers"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Serve audio content over HTTP",
	RunE:         serveMain,
	SilenceUsage: true,
}

func serveMain(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.InitServer(); err != nil {
		return err
	}

	if err := launchers.LaunchServer(ctx); err != nil {
		log.Errorln("Server failure:", err)
		return err
	}
	log.Infoln("Server shut down cleanly")
	return nil
}
