package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestIsSystemWindowFiltersKnownClasses(t *testing.T) {
	info := &Info{ClassName: "Shell_TrayWnd", Title: "", Bounds: types.Rectangle{Width: 200, Height: 40}}
	assert.True(t, isSystemWindow(info))
}

func TestIsSystemWindowFiltersTinyUntitled(t *testing.T) {
	info := &Info{ClassName: "SomeClass", Title: "", Bounds: types.Rectangle{Width: 40, Height: 40}}
	assert.True(t, isSystemWindow(info))
}

func TestIsSystemWindowAllowsNormalWindow(t *testing.T) {
	info := &Info{ClassName: "Chrome_WidgetWin_1", Title: "Inbox", Bounds: types.Rectangle{Width: 1200, Height: 800}, Handle: 1}
	assert.False(t, isSystemWindow(info))
}

func TestMatchesFilterMinimumSize(t *testing.T) {
	info := &Info{Bounds: types.Rectangle{Width: 100, Height: 100}}
	filter := &types.WindowFilter{MinWidth: 200}
	assert.False(t, matchesFilter(info, filter))

	filter = &types.WindowFilter{MinWidth: 50}
	assert.True(t, matchesFilter(info, filter))
}

func TestMatchesFilterExcludedProcessNames(t *testing.T) {
	info := &Info{ClassName: "NotepadClass", Bounds: types.Rectangle{Width: 100, Height: 100}}
	filter := &types.WindowFilter{ExcludedProcessNames: []string{"NotepadClass"}}
	assert.False(t, matchesFilter(info, filter))
}
