package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicematch/pkg/devicedesc"
	"github.com/carverauto/devicematch/pkg/inventory"
	"github.com/carverauto/devicematch/pkg/logger"
	"github.com/carverauto/devicematch/pkg/templates"
)

func newTestServer(t *testing.T, options ...func(server *APIServer)) *APIServer {
	t.Helper()

	options = append([]func(server *APIServer){WithLogger(logger.NewTestLogger())}, options...)

	return NewAPIServer(options...)
}

func doJSON(t *testing.T, server http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	return rec
}

func TestPostMatch(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/match", MatchRequest{
		Pattern:   &devicedesc.Description{Manufacturer: "sony"},
		Candidate: &devicedesc.Description{Manufacturer: "Sony Interactive Entertainment"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
}

func TestPostMatchNoMatch(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/match", MatchRequest{
		Pattern:   &devicedesc.Description{DeviceClass: "Gamepad", Product: "Foo"},
		Candidate: &devicedesc.Description{DeviceClass: "Gamepad"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
}

func TestPostMatchBadPattern(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/match", MatchRequest{
		Pattern:   &devicedesc.Description{InterfaceName: "(unterminated"},
		Candidate: &devicedesc.Description{InterfaceName: "HID"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "invalid match pattern")
}

func TestPostMatchMalformedBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMatchUsesCanonicalFieldNames(t *testing.T) {
	server := newTestServer(t)

	body := []byte(`{"pattern":{"type":"Gamepad"},"candidate":{"type":"Gamepad","product":"Foo"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
}

func TestTemplateLifecycle(t *testing.T) {
	registry := templates.New(logger.NewTestLogger())
	server := newTestServer(t, WithTemplates(registry))

	rec := doJSON(t, server, http.MethodPost, "/api/templates", RegisterTemplateRequest{
		Name:    "gamepad.dualsense",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad", Product: "DualSense"},
		Source:  "evdev",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/templates/gamepad.dualsense", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tmpl templates.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
	assert.Equal(t, "DualSense", tmpl.Pattern.Product)

	rec = doJSON(t, server, http.MethodGet, "/api/templates?prefix=gamepad.", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []templates.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestRegisterTemplatePaddedName(t *testing.T) {
	registry := templates.New(logger.NewTestLogger())
	server := newTestServer(t, WithTemplates(registry))

	rec := doJSON(t, server, http.MethodPost, "/api/templates", RegisterTemplateRequest{
		Name:    "  gamepad.padded  ",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var tmpl templates.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
	assert.Equal(t, "gamepad.padded", tmpl.Name)

	assert.True(t, registry.Has("gamepad.padded"))

	rec = doJSON(t, server, http.MethodGet, "/api/templates/gamepad.padded", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterTemplateInvalid(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/templates", RegisterTemplateRequest{
		Name: "no-pattern",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTemplateNotFound(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/templates/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeviceLifecycle(t *testing.T) {
	index := inventory.NewIndex()
	server := newTestServer(t, WithInventory(index))

	rec := doJSON(t, server, http.MethodPost, "/api/devices", AddDeviceRequest{
		Description: &devicedesc.Description{
			DeviceClass: "Gamepad",
			Product:     "DualSense Wireless Controller",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var device inventory.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	require.NotEmpty(t, device.ID)

	rec = doJSON(t, server, http.MethodGet, "/api/devices/"+device.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/devices?class=gamepad", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []inventory.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doJSON(t, server, http.MethodDelete, "/api/devices/"+device.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/devices/"+device.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddDeviceEmptyDescription(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/devices", AddDeviceRequest{
		Description: &devicedesc.Description{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeviceTemplates(t *testing.T) {
	registry := templates.New(logger.NewTestLogger())
	index := inventory.NewIndex()
	server := newTestServer(t, WithTemplates(registry), WithInventory(index))

	require.NoError(t, registry.Register(&templates.Template{
		Name:    "gamepad.any",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad"},
	}))
	require.NoError(t, registry.Register(&templates.Template{
		Name:    "keyboard.generic",
		Pattern: &devicedesc.Description{DeviceClass: "Keyboard"},
	}))

	device, err := index.Add(&devicedesc.Description{DeviceClass: "Gamepad", Product: "Foo"})
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodGet, "/api/devices/"+device.ID+"/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeviceTemplatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, device.ID, resp.DeviceID)
	assert.Equal(t, []string{"gamepad.any"}, resp.Templates)
}

func TestAPIKeyMiddleware(t *testing.T) {
	server := newTestServer(t, WithAPIKey("secret"))

	rec := doJSON(t, server, http.MethodGet, "/api/templates", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/templates?api_key=secret", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflights(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/templates", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
