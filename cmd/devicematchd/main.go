/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/devicematch/pkg/api"
	"github.com/carverauto/devicematch/pkg/config"
	"github.com/carverauto/devicematch/pkg/inventory"
	"github.com/carverauto/devicematch/pkg/logger"
	"github.com/carverauto/devicematch/pkg/templates"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "/etc/devicematch/devicematch.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg api.Config
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	registry := templates.New(appLogger)
	index := inventory.NewIndex()

	options := []func(server *api.APIServer){
		api.WithLogger(appLogger),
		api.WithTemplates(registry),
		api.WithInventory(index),
	}

	if cfg.APIKey != "" {
		options = append(options, api.WithAPIKey(cfg.APIKey))
	}

	if cfg.NatsURL != "" {
		store, err := templates.NewStore(ctx, cfg.NatsURL, cfg.TemplatesBucket)
		if err != nil {
			log.Fatalf("Failed to open template store: %v", err)
		}
		defer store.Close()

		count, err := store.Hydrate(ctx, registry)
		if err != nil {
			log.Fatalf("Failed to hydrate templates: %v", err)
		}

		appLogger.Info().
			Int("templates", count).
			Str("bucket", cfg.TemplatesBucket).
			Msg("hydrated templates from store")

		options = append(options, api.WithTemplateStore(store))
	}

	server := api.NewAPIServer(options...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	appLogger.Info().Str("addr", cfg.ListenAddr).Msg("devicematch API listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	appLogger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
