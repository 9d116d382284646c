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

// Package param provides typed accessors for the viper-backed configuration.
//
// Call sites use the exported parameter objects (e.g.
// param.Cache_DataLocation.GetString()) rather than raw viper keys so that
// the set of known configuration knobs lives in one place.
package param

import (
	"time"

	"github.com/spf13/viper"
)

type (
	StringParam struct {
		name string
	}

	IntParam struct {
		name string
	}

	BoolParam struct {
		name string
	}

	DurationParam struct {
		name string
	}
)

func (sP StringParam) GetString() string {
	return viper.GetString(sP.name)
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (iP IntParam) GetInt() int {
	return viper.GetInt(iP.name)
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (bP BoolParam) GetBool() bool {
	return viper.GetBool(bP.name)
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (dP DurationParam) GetDuration() time.Duration {
	return viper.GetDuration(dP.name)
}

func (dP DurationParam) GetName() string {
	return dP.name
}

var (
	Server_Address = StringParam{"Server.Address"}
	Server_Port    = IntParam{"Server.Port"}

	Logging_Level = StringParam{"Logging.Level"}

	// Origin store (GridFS) connection and behavior
	Origin_Url             = StringParam{"Origin.Url"}
	Origin_Database        = StringParam{"Origin.Database"}
	Origin_Bucket          = StringParam{"Origin.Bucket"}
	Origin_ResponseTimeout = DurationParam{"Origin.ResponseTimeout"}
	Origin_InfoCacheTTL    = DurationParam{"Origin.InfoCacheTTL"}

	// Cache tiers
	Cache_DataLocation     = StringParam{"Cache.DataLocation"}
	Cache_DiskTTL          = DurationParam{"Cache.DiskTTL"}
	Cache_MemoryTTL        = DurationParam{"Cache.MemoryTTL"}
	Cache_MemoryMaxEntries = IntParam{"Cache.MemoryMaxEntries"}
	Cache_MaxChunkSize     = StringParam{"Cache.MaxChunkSize"}
	Cache_DefaultChunkSize = StringParam{"Cache.DefaultChunkSize"}
)
