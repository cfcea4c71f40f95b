package instruction

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which instruction template Assemble renders. The set is
// closed; anything outside it is rejected.
type Mode int

const (
	ModePlanStyleLock Mode = iota + 1
	ModeSpatialSynthesis
	ModeEnhance
)

var ErrUnknownMode = errors.New("unknown render mode")

func Modes() []Mode {
	return []Mode{ModePlanStyleLock, ModeSpatialSynthesis, ModeEnhance}
}

func (m Mode) String() string {
	switch m {
	case ModePlanStyleLock:
		return "planStyleLock"
	case ModeSpatialSynthesis:
		return "spatialSynthesis"
	case ModeEnhance:
		return "enhance"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Key is the short token used in captions, form fields and callback data.
func (m Mode) Key() string {
	switch m {
	case ModePlanStyleLock:
		return "plan"
	case ModeSpatialSynthesis:
		return "spatial"
	case ModeEnhance:
		return "enhance"
	default:
		return ""
	}
}

// NeedsReference reports whether the mode reads a secondary style image.
func (m Mode) NeedsReference() bool {
	return m == ModePlanStyleLock || m == ModeSpatialSynthesis
}

func ParseMode(value string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "plan", "planstylelock", "stylelock", "lock":
		return ModePlanStyleLock, nil
	case "spatial", "spatialsynthesis", "synthesis", "transfer":
		return ModeSpatialSynthesis, nil
	case "enhance", "enhancement":
		return ModeEnhance, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}
