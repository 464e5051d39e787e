package bridge

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/guestagent/platform"
)

func TestRegisterIsIdempotent(t *testing.T) {
	os := &fakeRegistrar{}
	h := NewHotkeys(os)

	require.NoError(t, h.Register(1, platform.ModCtrl|platform.ModAlt, 0x7B))
	require.NoError(t, h.Register(1, platform.ModCtrl|platform.ModAlt, 0x7B))

	assert.Equal(t, 1, os.registerCalls)
	assert.Equal(t, []HotkeyBinding{{ID: 1, Mods: platform.ModCtrl | platform.ModAlt, Key: 0x7B}}, h.Bindings())
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name     string
		osErr    error
		wantKind BindErrorKind
		wantCode uint32
	}{
		{"claimed elsewhere", syscall.Errno(1409), BindAlreadyClaimed, 1409},
		{"other errno", syscall.Errno(5), BindUnknown, 5},
		{"no errno", errors.New("window gone"), BindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHotkeys(&fakeRegistrar{err: tt.osErr})

			err := h.Register(2, platform.ModShift, 0x41)
			var bindErr *BindError
			require.ErrorAs(t, err, &bindErr)
			assert.Equal(t, tt.wantKind, bindErr.Kind)
			assert.Equal(t, tt.wantCode, bindErr.Code)
			assert.ErrorIs(t, err, tt.osErr)
			assert.Empty(t, h.Bindings(), "failed registrations are not recorded")
		})
	}
}

func TestRegisterRejectsBadIDs(t *testing.T) {
	os := &fakeRegistrar{}
	h := NewHotkeys(os)

	var bindErr *BindError
	require.ErrorAs(t, h.Register(-1, platform.ModAlt, 0x41), &bindErr)
	assert.Equal(t, BindInvalidID, bindErr.Kind)

	require.NoError(t, h.Register(4, platform.ModAlt, 0x41))
	require.ErrorAs(t, h.Register(4, platform.ModAlt, 0x42), &bindErr)
	assert.Equal(t, BindInvalidID, bindErr.Kind)
	assert.Equal(t, 1, os.registerCalls)
}

func TestUnregister(t *testing.T) {
	os := &fakeRegistrar{}
	h := NewHotkeys(os)

	require.NoError(t, h.Unregister(9), "unknown ids are a no-op")
	assert.Equal(t, 0, os.unregisterCalls)

	require.NoError(t, h.Register(9, platform.ModWin, 0x20))
	require.NoError(t, h.Unregister(9))
	assert.Equal(t, 1, os.unregisterCalls)
	assert.Empty(t, h.Bindings())

	// The id is free again, so a different chord may take it
	require.NoError(t, h.Register(9, platform.ModCtrl, 0x21))
	assert.Equal(t, 2, os.registerCalls)
}

func TestUnregisterFailureKeepsBinding(t *testing.T) {
	os := &fakeRegistrar{}
	h := NewHotkeys(os)
	require.NoError(t, h.Register(3, platform.ModAlt, 0x41))

	os.err = syscall.Errno(1419)
	var bindErr *BindError
	require.ErrorAs(t, h.Unregister(3), &bindErr)
	assert.Equal(t, BindUnknown, bindErr.Kind)
	assert.Len(t, h.Bindings(), 1)
}

func TestBindErrorMessage(t *testing.T) {
	err := &BindError{
		Kind:    BindAlreadyClaimed,
		Binding: HotkeyBinding{ID: 5, Mods: platform.ModCtrl, Key: 0x7B},
		Code:    1409,
	}
	assert.Equal(t, "bind hotkey 5 (ctrl+0x7B): already claimed (code 1409)", err.Error())
}
