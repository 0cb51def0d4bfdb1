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

// Package api exposes the matcher over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/devicematch/pkg/devicedesc"
	"github.com/carverauto/devicematch/pkg/inventory"
	"github.com/carverauto/devicematch/pkg/logger"
	"github.com/carverauto/devicematch/pkg/templates"
)

const defaultTimeout = 10 * time.Second

// APIServer serves match queries, template registration, and the device
// inventory.
type APIServer struct {
	router    *mux.Router
	templates *templates.Registry
	store     *templates.Store
	inventory *inventory.Index
	logger    logger.Logger
	apiKey    string
}

// NewAPIServer creates an APIServer with the provided options and wires its
// routes.
func NewAPIServer(options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router: mux.NewRouter(),
		logger: logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	if s.templates == nil {
		s.templates = templates.New(s.logger)
	}

	if s.inventory == nil {
		s.inventory = inventory.NewIndex()
	}

	s.setupRoutes()

	return s
}

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) func(server *APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

// WithAPIKey protects the /api routes with an API key.
func WithAPIKey(apiKey string) func(server *APIServer) {
	return func(server *APIServer) {
		server.apiKey = apiKey
	}
}

// WithTemplates sets the template registry.
func WithTemplates(registry *templates.Registry) func(server *APIServer) {
	return func(server *APIServer) {
		server.templates = registry
	}
}

// WithTemplateStore persists registered templates to the given store.
func WithTemplateStore(store *templates.Store) func(server *APIServer) {
	return func(server *APIServer) {
		server.store = store
	}
}

// WithInventory sets the device inventory index.
func WithInventory(index *inventory.Index) func(server *APIServer) {
	return func(server *APIServer) {
		server.inventory = index
	}
}

// ServeHTTP implements http.Handler.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *APIServer) setupRoutes() {
	s.router.Use(CommonMiddleware(s.logger))

	// Preflight requests are answered by the middleware; the handler only
	// exists so the router matches them.
	s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	apiRouter := s.router.PathPrefix("/api").Subrouter()

	if s.apiKey != "" {
		apiRouter.Use(APIKeyMiddleware(s.logger, s.apiKey))
	}

	apiRouter.HandleFunc("/match", s.postMatch).Methods(http.MethodPost)
	apiRouter.HandleFunc("/templates", s.listTemplates).Methods(http.MethodGet)
	apiRouter.HandleFunc("/templates", s.registerTemplate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/templates/{name}", s.getTemplate).Methods(http.MethodGet)
	apiRouter.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	apiRouter.HandleFunc("/devices", s.addDevice).Methods(http.MethodPost)
	apiRouter.HandleFunc("/devices/{id}", s.getDevice).Methods(http.MethodGet)
	apiRouter.HandleFunc("/devices/{id}", s.removeDevice).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/devices/{id}/templates", s.getDeviceTemplates).Methods(http.MethodGet)
}

// @Summary Match a pattern against a candidate
// @Description Applies the device matching rules to a pattern/candidate pair
// @Tags Match
// @Accept json
// @Produce json
// @Param request body MatchRequest true "Pattern and candidate descriptions"
// @Success 200 {object} MatchResponse "Match outcome"
// @Failure 400 {object} ErrorResponse "Malformed request body"
// @Failure 422 {object} ErrorResponse "Pattern field is not a valid regular expression"
// @Router /api/match [post]
// @Security ApiKeyAuth
func (s *APIServer) postMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	matched, err := req.Pattern.Matches(req.Candidate)
	if err != nil {
		if errors.Is(err, devicedesc.ErrBadPattern) {
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		s.logger.Error().Err(err).Msg("match evaluation failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if err := s.encodeJSONResponse(w, MatchResponse{Matched: matched}); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode match response")
	}
}

// @Summary List templates
// @Description Lists registered templates, optionally filtered by name prefix
// @Tags Templates
// @Produce json
// @Param prefix query string false "Template name prefix"
// @Success 200 {array} templates.Template "Registered templates"
// @Router /api/templates [get]
// @Security ApiKeyAuth
func (s *APIServer) listTemplates(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	if err := s.encodeJSONResponse(w, s.templates.List(prefix)); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode template list")
	}
}

// @Summary Register a template
// @Description Registers (or replaces) a named template pattern
// @Tags Templates
// @Accept json
// @Produce json
// @Param request body RegisterTemplateRequest true "Template to register"
// @Success 201 {object} templates.Template "Registered template"
// @Failure 400 {object} ErrorResponse "Invalid template"
// @Router /api/templates [post]
// @Security ApiKeyAuth
func (s *APIServer) registerTemplate(w http.ResponseWriter, r *http.Request) {
	var req RegisterTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Register stores the template under its trimmed name; read it back the
	// same way.
	name := strings.TrimSpace(req.Name)

	tmpl := &templates.Template{
		Name:    name,
		Pattern: req.Pattern,
		Source:  req.Source,
	}

	if err := s.templates.Register(tmpl); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, err := s.templates.Get(name)
	if err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("failed to read back registered template")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
		defer cancel()

		if err := s.store.Save(ctx, stored); err != nil {
			s.logger.Error().Err(err).Str("template", stored.Name).Msg("failed to persist template")
			writeError(w, "Failed to persist template", http.StatusInternalServerError)

			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(stored); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode registered template")
	}
}

// @Summary Get a template
// @Description Retrieves a registered template by name
// @Tags Templates
// @Produce json
// @Param name path string true "Template name"
// @Success 200 {object} templates.Template "Template"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Router /api/templates/{name} [get]
// @Security ApiKeyAuth
func (s *APIServer) getTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	tmpl, err := s.templates.Get(vars["name"])
	if err != nil {
		writeError(w, "Template not found", http.StatusNotFound)
		return
	}

	if err := s.encodeJSONResponse(w, tmpl); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode template")
	}
}

// @Summary List devices
// @Description Lists the device inventory, optionally filtered by device class
// @Tags Devices
// @Produce json
// @Param class query string false "Device class filter"
// @Success 200 {array} inventory.Device "Known devices"
// @Router /api/devices [get]
// @Security ApiKeyAuth
func (s *APIServer) listDevices(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")

	devices := s.inventory.List()

	if class != "" {
		ids := s.inventory.ListByClass(class)
		keep := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			keep[id] = struct{}{}
		}

		filtered := devices[:0]
		for _, device := range devices {
			if _, ok := keep[device.ID]; ok {
				filtered = append(filtered, device)
			}
		}
		devices = filtered
	}

	if err := s.encodeJSONResponse(w, devices); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode device list")
	}
}

// @Summary Report a device
// @Description Adds a device description to the inventory and assigns it an ID
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body AddDeviceRequest true "Device description"
// @Success 201 {object} inventory.Device "Stored device"
// @Failure 400 {object} ErrorResponse "Empty or malformed description"
// @Router /api/devices [post]
// @Security ApiKeyAuth
func (s *APIServer) addDevice(w http.ResponseWriter, r *http.Request) {
	var req AddDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	device, err := s.inventory.Add(req.Description)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info().
		Str("device_id", device.ID).
		Str("device", device.Description.String()).
		Msg("device reported")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(device); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode stored device")
	}
}

// @Summary Get a device
// @Description Retrieves a stored device by ID
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} inventory.Device "Device"
// @Failure 404 {object} ErrorResponse "Device not found"
// @Router /api/devices/{id} [get]
// @Security ApiKeyAuth
func (s *APIServer) getDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	device, ok := s.inventory.Get(vars["id"])
	if !ok {
		writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	if err := s.encodeJSONResponse(w, device); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode device")
	}
}

// @Summary Remove a device
// @Description Removes a stored device from the inventory
// @Tags Devices
// @Param id path string true "Device ID"
// @Success 204 "Removed"
// @Router /api/devices/{id} [delete]
// @Security ApiKeyAuth
func (s *APIServer) removeDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.inventory.Remove(vars["id"])

	w.WriteHeader(http.StatusNoContent)
}

// @Summary List matching templates for a device
// @Description Evaluates every registered template pattern against the stored device
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} DeviceTemplatesResponse "Matching template names"
// @Failure 404 {object} ErrorResponse "Device not found"
// @Router /api/devices/{id}/templates [get]
// @Security ApiKeyAuth
func (s *APIServer) getDeviceTemplates(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	device, ok := s.inventory.Get(vars["id"])
	if !ok {
		writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	matches := s.templates.MatchCandidate(ctx, device.Description)

	response := DeviceTemplatesResponse{
		DeviceID:  device.ID,
		Templates: matches,
	}

	if err := s.encodeJSONResponse(w, response); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode device templates")
	}
}

// encodeJSONResponse encodes a response as JSON
func (*APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		// Fallback in case encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
