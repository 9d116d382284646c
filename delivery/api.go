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

package delivery

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/resonate-audio/resonate/diskcache"
	"github.com/resonate-audio/resonate/metrics"
	"github.com/resonate-audio/resonate/server_structs"
)

// Register attaches the streaming routes to the given router group.
func (c *Coordinator) Register(router *gin.RouterGroup) {
	router.GET("/audio/:fileId", c.ServeAudio)
	router.HEAD("/audio/:fileId", c.HeadAudio)
	router.OPTIONS("/audio/:fileId", c.OptionsAudio)
}

// AdminAPI exposes operational control over the disk cache.  These
// endpoints block on directory scans and are not part of the hot path;
// authorization is expected to be enforced upstream (reverse proxy).
type AdminAPI struct {
	disk *diskcache.Cache
}

func NewAdminAPI(disk *diskcache.Cache) *AdminAPI {
	return &AdminAPI{disk: disk}
}

func (a *AdminAPI) Register(router *gin.RouterGroup) {
	router.GET("/admin/cache/stats", a.statsCmd)
	router.POST("/admin/cache/clear", a.clearCmd)
	router.POST("/admin/cache/clear-old", a.clearOldCmd)
}

func (a *AdminAPI) statsCmd(ginCtx *gin.Context) {
	stats, err := a.disk.GetStats()
	if err != nil {
		log.Errorln("Failed to compute cache statistics:", err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to compute cache statistics"})
		return
	}
	ginCtx.JSON(http.StatusOK, server_structs.CacheStatsResp{
		Status: server_structs.RespOK,
		Stats: server_structs.CacheStats{
			TotalFiles:   stats.TotalFiles,
			TotalSize:    stats.TotalSize,
			OldestFile:   stats.OldestFile,
			NewestFile:   stats.NewestFile,
			CacheHitRate: metrics.HitRate(),
		},
	})
}

func (a *AdminAPI) clearCmd(ginCtx *gin.Context) {
	deleted, err := a.disk.ClearAll()
	if err != nil {
		log.Errorln("Failed to clear the disk cache:", err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to clear the cache"})
		return
	}
	log.Infof("Admin request cleared %d cache entries", deleted)
	ginCtx.JSON(http.StatusOK, server_structs.CacheClearResp{
		Status:       server_structs.RespOK,
		DeletedCount: deleted,
	})
}

func (a *AdminAPI) clearOldCmd(ginCtx *gin.Context) {
	req := server_structs.CacheClearOldReq{MaxAgeHours: 24}
	// An empty body means the default threshold
	if ginCtx.Request.ContentLength > 0 {
		if err := ginCtx.ShouldBindJSON(&req); err != nil {
			ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Invalid request format"})
			return
		}
	}
	if req.MaxAgeHours <= 0 {
		req.MaxAgeHours = 24
	}

	deleted, err := a.disk.ClearExpired(time.Duration(req.MaxAgeHours) * time.Hour)
	if err != nil {
		log.Errorln("Failed to clear aged cache entries:", err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to clear aged cache entries"})
		return
	}
	log.Infof("Admin request cleared %d cache entries older than %dh", deleted, req.MaxAgeHours)
	ginCtx.JSON(http.StatusOK, server_structs.CacheClearResp{
		Status:       server_structs.RespOK,
		DeletedCount: deleted,
	})
}
