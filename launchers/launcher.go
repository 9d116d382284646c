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

// Package launchers assembles the configured components into a running
// HTTP server.
package launchers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zsais/go-gin-prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/resonate-audio/resonate/chunkcache"
	"github.com/resonate-audio/resonate/config"
	"github.com/resonate-audio/resonate/delivery"
	"github.com/resonate-audio/resonate/diskcache"
	"github.com/resonate-audio/resonate/origin"
	"github.com/resonate-audio/resonate/param"
)

// GetEngine builds the gin engine with the ambient middleware: panic
// recovery, request logging through logrus, and Prometheus
// instrumentation.
func GetEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	webLogger := log.WithFields(log.Fields{"daemon": "gin"})
	engine.Use(func(ctx *gin.Context) {
		startTime := time.Now()

		ctx.Next()

		latency := time.Since(startTime)
		webLogger.WithFields(log.Fields{"method": ctx.Request.Method,
			"status":   ctx.Writer.Status(),
			"time":     latency.String(),
			"client":   ctx.RemoteIP(),
			"resource": ctx.Request.URL.Path},
		).Info("Served Request")
	})

	prometheusMonitor := ginprometheus.NewPrometheus("gin")
	prometheusMonitor.Use(engine)

	engine.GET("/api/v1.0/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

// newStore opens the configured origin store.  A mongodb:// URL selects
// the GridFS origin; anything else is treated as a posix directory for
// development deployments.
func newStore(ctx context.Context) (origin.Store, error) {
	originURL := param.Origin_Url.GetString()
	if strings.HasPrefix(originURL, "mongodb://") || strings.HasPrefix(originURL, "mongodb+srv://") {
		return origin.NewGridFSStore(ctx, originURL,
			param.Origin_Database.GetString(), param.Origin_Bucket.GetString())
	}
	log.Warningf("Origin.Url %q is not a MongoDB URL; serving from the local directory instead", originURL)
	return origin.NewPosixStore(originURL)
}

// LaunchServer starts the audio delivery server and blocks until the
// context is canceled and the server has drained.
func LaunchServer(ctx context.Context) error {
	egrp, ctx := errgroup.WithContext(ctx)

	store, err := newStore(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to open the origin store")
	}
	cachedStore := origin.NewCachedStore(store, param.Origin_InfoCacheTTL.GetDuration())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cachedStore.Close(shutdownCtx); err != nil {
			log.Warningln("Failed to close the origin store:", err)
		}
	}()

	disk, err := diskcache.New(param.Cache_DataLocation.GetString(), param.Cache_DiskTTL.GetDuration())
	if err != nil {
		return err
	}

	maxChunkSize, err := config.GetChunkSize(param.Cache_MaxChunkSize)
	if err != nil {
		return err
	}
	defaultChunkSize, err := config.GetChunkSize(param.Cache_DefaultChunkSize)
	if err != nil {
		return err
	}
	chunks := chunkcache.New(param.Cache_MemoryTTL.GetDuration(),
		param.Cache_MemoryMaxEntries.GetInt(), maxChunkSize)

	originTimeout := param.Origin_ResponseTimeout.GetDuration()
	populator := diskcache.NewPopulator(disk, cachedStore, originTimeout, egrp)
	coordinator := delivery.NewCoordinator(cachedStore, chunks, disk, populator,
		defaultChunkSize, maxChunkSize, originTimeout)

	engine := GetEngine()
	apiGroup := engine.Group("/api/v1.0")
	coordinator.Register(apiGroup)
	delivery.NewAdminAPI(disk).Register(apiGroup)

	addr := fmt.Sprintf("%v:%v", param.Server_Address.GetString(), param.Server_Port.GetInt())
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	egrp.Go(func() error {
		log.Infoln("Audio delivery server listening at", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	egrp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	return egrp.Wait()
}
