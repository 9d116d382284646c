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

// Package server_structs shares the JSON structs returned by the HTTP APIs.
//
// It should only import lower level packages; never the server packages
// themselves.
package server_structs

type (
	// A short response object, meant for the result from most of the APIs.
	// Will generate a JSON of the form:
	// {"status": "error", "msg": "Some Error Message"}
	// or
	// {"status": "success"}
	SimpleApiResp struct {
		Status SimpleRespStatus `json:"status"`
		Msg    string           `json:"msg,omitempty"`
	}

	// The standardized status message for the API response
	SimpleRespStatus string

	// Aggregate disk-cache statistics as reported by the admin API.
	// TotalSize is in megabytes, rounded to two decimal places.
	CacheStats struct {
		TotalFiles   int     `json:"totalFiles"`
		TotalSize    float64 `json:"totalSize"`
		OldestFile   string  `json:"oldestFile"`
		NewestFile   string  `json:"newestFile"`
		CacheHitRate float64 `json:"cacheHitRate"`
	}

	CacheStatsResp struct {
		Status SimpleRespStatus `json:"status"`
		Stats  CacheStats       `json:"stats"`
	}

	CacheClearResp struct {
		Status       SimpleRespStatus `json:"status"`
		DeletedCount int              `json:"deletedCount"`
	}

	// Request body for the clear-old admin endpoint; MaxAgeHours
	// defaults to 24 when the body is empty or omitted.
	CacheClearOldReq struct {
		MaxAgeHours int `json:"maxAgeHours"`
	}
)

const (
	// Indicates the API succeeded.
	RespOK SimpleRespStatus = "success"
	// Indicates the API call failed; the SimpleApiResp Msg should be non-empty in this case
	RespFailed SimpleRespStatus = "error"
)
