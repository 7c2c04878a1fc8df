// Copyright 2024-2025 The chatrelay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gitlab.com/project-nan/chatrelay/apis"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/core"
	"gitlab.com/project-nan/chatrelay/relay"
	"gitlab.com/project-nan/chatrelay/storage"
)

// RunRelayServer run the chat relay server until the runtime context ends
func RunRelayServer(
	runTimeContext context.Context,
	config *common.SystemConfig,
	instance string,
	natsClient *core.NatsClient,
	counter storage.VisitCounter,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "relay",
		"instance":  instance,
	}

	// One bridge per process instance, shared by every session
	bridge, err := relay.GetNatsBrokerBridge(
		natsClient,
		config.Chat.Channel,
		time.Second*time.Duration(config.NATS.PublishTimeout),
		instance,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define broker bridge")
		return err
	}

	httpConfig := &config.Relay.HTTPSetting
	chatHandler, err := apis.GetAPIRestChatHandler(bridge, config.Chat, httpConfig)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define chat handler")
		return err
	}
	siteHandler, err := apis.GetAPIRestSiteHandler(bridge, counter, instance, httpConfig)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define site handler")
		return err
	}

	// -------------------------------------------------------------------
	// Start the HTTP server

	router := mux.NewRouter()
	router.NotFoundHandler = siteHandler.NotFoundHandler()
	router.MethodNotAllowedHandler = siteHandler.MethodNotAllowedHandler()
	mainRouter := apis.RegisterPathPrefix(
		router, config.Relay.Endpoints.PathPrefix, map[string]http.HandlerFunc{
			"get":  siteHandler.RootPageHandler(),
			"head": siteHandler.RootPageHandler(),
		},
	)

	// Visit counter
	_ = apis.RegisterPathPrefix(mainRouter, "/count", map[string]http.HandlerFunc{
		"get": siteHandler.CountHandler(),
	})

	// Chat session upgrade
	_ = apis.RegisterPathPrefix(mainRouter, "/ws", map[string]http.HandlerFunc{
		"get": chatHandler.WebsocketHandler(),
	})

	// Static assets
	_ = apis.RegisterPathPrefix(mainRouter, "/manifest.json", map[string]http.HandlerFunc{
		"get": siteHandler.ManifestHandler(),
	})

	// Health check
	_ = apis.RegisterPathPrefix(mainRouter, "/alive", map[string]http.HandlerFunc{
		"get": siteHandler.AliveHandler(),
	})
	_ = apis.RegisterPathPrefix(mainRouter, "/ready", map[string]http.HandlerFunc{
		"get": siteHandler.ReadyHandler(),
	})

	// Add logging
	router.Use(func(next http.Handler) http.Handler {
		return handlers.CombinedLoggingHandler(siteHandler, next)
	})

	serverListen := fmt.Sprintf(
		"%s:%d", httpConfig.Server.ListenOn, httpConfig.Server.Port,
	)
	httpSrv := &http.Server{
		Addr:         serverListen,
		ReadTimeout:  time.Second * time.Duration(httpConfig.Server.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(httpConfig.Server.WriteTimeout),
		IdleTimeout:  time.Second * time.Duration(httpConfig.Server.IdleTimeout),
		Handler:      router,
	}

	// Start the server
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP Server Failure")
		}
	}()

	log.WithFields(logTags).Infof("Started HTTP server on http://%s", serverListen)

	// ============================================================================

	<-runTimeContext.Done()

	// Stop the HTTP server
	{
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Failure during HTTP shutdown")
		}
		bridge.Stop(ctx)
	}

	return nil
}
