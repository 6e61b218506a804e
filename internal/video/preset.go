package video

import (
	"fmt"
	"strings"

	"github.com/eleven-am/kickflip/internal/shared"
)

type Preset string

const (
	PresetFail Preset = "fail"
	PresetWin  Preset = "win"
)

func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetFail, PresetWin:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown preset %q", shared.ErrMissingInput, s)
	}
}

// FileName is the static asset served for the preset.
func (p Preset) FileName() string {
	return "kick-" + string(p) + ".mp4"
}
