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
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonate-audio/resonate/param"
)

func TestGetChunkSize(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set(param.Cache_DefaultChunkSize.GetName(), "512KiB")
	size, err := GetChunkSize(param.Cache_DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024), size)

	viper.Set(param.Cache_MaxChunkSize.GetName(), "1MiB")
	size, err = GetChunkSize(param.Cache_MaxChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), size)

	viper.Set(param.Cache_MaxChunkSize.GetName(), "one megabyte")
	_, err = GetChunkSize(param.Cache_MaxChunkSize)
	assert.Error(t, err)

	viper.Set(param.Cache_MaxChunkSize.GetName(), "0B")
	_, err = GetChunkSize(param.Cache_MaxChunkSize)
	assert.Error(t, err)
}

func TestInitServerRequiresDataLocation(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	err := InitServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cache.DataLocation")

	cacheDir := filepath.Join(t.TempDir(), "cache")
	viper.Set(param.Cache_DataLocation.GetName(), cacheDir)
	require.NoError(t, InitServer())
	assert.DirExists(t, cacheDir)
}
