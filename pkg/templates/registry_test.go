package templates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicematch/pkg/devicedesc"
	"github.com/carverauto/devicematch/pkg/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(logger.NewTestLogger())
}

func TestRegisterAndGet(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Register(&Template{
		Name:    "gamepad.dualsense",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad", Product: "DualSense"},
		Source:  "evdev",
	})
	require.NoError(t, err)

	assert.True(t, registry.Has("gamepad.dualsense"))

	tmpl, err := registry.Get("gamepad.dualsense")
	require.NoError(t, err)
	assert.Equal(t, "gamepad.dualsense", tmpl.Name)
	assert.Equal(t, "evdev", tmpl.Source)
	assert.Equal(t, "DualSense", tmpl.Pattern.Product)
	assert.False(t, tmpl.RegisteredAt.IsZero())
}

func TestRegisterValidation(t *testing.T) {
	registry := newTestRegistry(t)

	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(&Template{Pattern: &devicedesc.Description{}}))
	assert.Error(t, registry.Register(&Template{Name: "no-pattern"}))
}

func TestGetUnknownTemplate(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Get("missing")
	assert.ErrorIs(t, err, errTemplateNotFound)

	_, err = registry.Get("")
	assert.ErrorIs(t, err, errTemplateNameRequired)
}

func TestRegisterCopiesPattern(t *testing.T) {
	registry := newTestRegistry(t)

	pattern := &devicedesc.Description{DeviceClass: "Gamepad"}
	require.NoError(t, registry.Register(&Template{Name: "gamepad", Pattern: pattern}))

	// Mutating the caller's pattern must not leak into the registry.
	pattern.DeviceClass = "Keyboard"

	tmpl, err := registry.Get("gamepad")
	require.NoError(t, err)
	assert.Equal(t, "Gamepad", tmpl.Pattern.DeviceClass)
}

func TestListWithPrefix(t *testing.T) {
	registry := newTestRegistry(t)

	for _, name := range []string{"gamepad.dualsense", "gamepad.xbox", "keyboard.generic"} {
		require.NoError(t, registry.Register(&Template{
			Name:    name,
			Pattern: &devicedesc.Description{},
		}))
	}

	all := registry.List("")
	require.Len(t, all, 3)
	assert.Equal(t, "gamepad.dualsense", all[0].Name)
	assert.Equal(t, "gamepad.xbox", all[1].Name)
	assert.Equal(t, "keyboard.generic", all[2].Name)

	gamepads := registry.List("gamepad.")
	require.Len(t, gamepads, 2)
}

func TestMatchCandidate(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Register(&Template{
		Name:    "gamepad.any",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad"},
	}))
	require.NoError(t, registry.Register(&Template{
		Name:    "gamepad.sony",
		Pattern: &devicedesc.Description{DeviceClass: "Gamepad", Manufacturer: "sony"},
	}))
	require.NoError(t, registry.Register(&Template{
		Name:    "keyboard.generic",
		Pattern: &devicedesc.Description{DeviceClass: "Keyboard"},
	}))

	matches := registry.MatchCandidate(context.Background(), &devicedesc.Description{
		DeviceClass:  "Gamepad",
		Manufacturer: "Sony Interactive Entertainment",
		Product:      "DualSense Wireless Controller",
	})
	assert.Equal(t, []string{"gamepad.any", "gamepad.sony"}, matches)

	matches = registry.MatchCandidate(context.Background(), &devicedesc.Description{DeviceClass: "Mouse"})
	assert.Empty(t, matches)
}

func TestMatchCandidateSkipsInvalidPattern(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Register(&Template{
		Name:    "broken",
		Pattern: &devicedesc.Description{Product: "(unterminated"},
	}))
	require.NoError(t, registry.Register(&Template{
		Name:    "working",
		Pattern: &devicedesc.Description{},
	}))

	matches := registry.MatchCandidate(context.Background(), &devicedesc.Description{Product: "Anything"})
	assert.Equal(t, []string{"working"}, matches)
}

func TestTemplateClone(t *testing.T) {
	original := &Template{
		Name:         "gamepad",
		Pattern:      &devicedesc.Description{DeviceClass: "Gamepad"},
		RegisteredAt: time.Now(),
	}

	clone := original.Clone()
	clone.Pattern.DeviceClass = "Keyboard"

	assert.Equal(t, "Gamepad", original.Pattern.DeviceClass)
	assert.Nil(t, (*Template)(nil).Clone())
}
