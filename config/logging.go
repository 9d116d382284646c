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

package config

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/resonate-audio/resonate/param"
)

// setLogging applies the Logging.Level parameter to the global logrus
// instance.  An unknown level falls back to info with a warning rather
// than preventing startup.
func setLogging() {
	levelStr := param.Logging_Level.GetString()
	level, err := log.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		log.Warningf("Unknown logging level %q; defaulting to info", levelStr)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// SetLogging is the exported variant used by the --debug flag handling
// and by tests that want verbose output.
func SetLogging(level log.Level) {
	log.SetLevel(level)
}
