// Package policy maps a frame's marker detections to a velocity command by
// partitioning the image's horizontal axis into three fixed zones.
//
// The mapping is memoryless: every call starts from a zero command, and no
// state survives between frames.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/tagfollower/internal/detector"
)

// Reference calibration for a 160px-wide frame. The center zone [80, 89]
// sits right of the image midpoint; the constants are kept as calibrated.
const (
	DefaultFrameWidth = 160
	DefaultLeftEdge   = 80
	DefaultRightEdge  = 89
	DefaultTurnRate   = 0.5 // rad/s
	DefaultCreepSpeed = 0.1 // m/s
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid policy config")

// VelocityCommand is the two degree-of-freedom motion command. Angular is
// counter-clockwise positive (a positive value turns left). The zero value
// holds the robot still.
type VelocityCommand struct {
	Angular float64 `json:"angular"`
	Linear  float64 `json:"linear"`
}

// IsZero reports whether the command holds the robot still.
func (c VelocityCommand) IsZero() bool {
	return c.Angular == 0 && c.Linear == 0
}

// Zone is a horizontal band of the image.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneLeft
	ZoneCenter
	ZoneRight
)

func (z Zone) String() string {
	switch z {
	case ZoneNone:
		return "NONE"
	case ZoneLeft:
		return "LEFT"
	case ZoneCenter:
		return "CENTER"
	case ZoneRight:
		return "RIGHT"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

// Selection decides which detection drives the command when several are
// visible in one frame.
type Selection int

const (
	// SelectLast lets each detection replace the previous one's command, so
	// the last detection in the list wins.
	SelectLast Selection = iota
	// SelectWidest uses the detection with the largest apparent width.
	// Ties go to the later detection.
	SelectWidest
)

func (s Selection) String() string {
	switch s {
	case SelectLast:
		return "last"
	case SelectWidest:
		return "widest"
	default:
		return fmt.Sprintf("Selection(%d)", int(s))
	}
}

// ParseSelection converts a selection name into a Selection.
func ParseSelection(value string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "last":
		return SelectLast, nil
	case "widest":
		return SelectWidest, nil
	default:
		return SelectLast, fmt.Errorf("unknown selection %q", value)
	}
}

// MarshalText encodes the selection by name.
func (s Selection) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText allows selections to be loaded from JSON strings.
func (s *Selection) UnmarshalText(b []byte) error {
	parsed, err := ParseSelection(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Config holds the zone boundaries and the fixed command magnitudes.
type Config struct {
	FrameWidth int `json:"frame_width"`

	// LeftEdge is the first x of the center zone; x < LeftEdge is LEFT.
	LeftEdge int `json:"left_edge"`
	// RightEdge is the last x of the center zone; x > RightEdge is RIGHT.
	RightEdge int `json:"right_edge"`

	TurnRate   float64   `json:"turn_rate"`
	CreepSpeed float64   `json:"creep_speed"`
	Selection  Selection `json:"selection"`
}

// DefaultConfig returns the reference calibration.
func DefaultConfig() Config {
	return Config{
		FrameWidth: DefaultFrameWidth,
		LeftEdge:   DefaultLeftEdge,
		RightEdge:  DefaultRightEdge,
		TurnRate:   DefaultTurnRate,
		CreepSpeed: DefaultCreepSpeed,
		Selection:  SelectLast,
	}
}

// Validate checks that the zones partition the frame and the rates are usable.
func (c Config) Validate() error {
	if c.FrameWidth <= 0 {
		return fmt.Errorf("%w: frame width must be > 0, got %d", ErrInvalidConfig, c.FrameWidth)
	}
	if c.LeftEdge < 0 || c.LeftEdge > c.RightEdge || c.RightEdge >= c.FrameWidth {
		return fmt.Errorf("%w: need 0 <= left (%d) <= right (%d) < width (%d)",
			ErrInvalidConfig, c.LeftEdge, c.RightEdge, c.FrameWidth)
	}
	if c.TurnRate < 0 || c.CreepSpeed < 0 {
		return fmt.Errorf("%w: turn rate and creep speed are magnitudes and must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Classify places an x coordinate in a zone. It is total over all integers.
func (c Config) Classify(x int) Zone {
	switch {
	case x < c.LeftEdge:
		return ZoneLeft
	case x <= c.RightEdge:
		return ZoneCenter
	default:
		return ZoneRight
	}
}

// CommandFor returns the command for a single zone.
func (c Config) CommandFor(z Zone) VelocityCommand {
	switch z {
	case ZoneLeft:
		return VelocityCommand{Angular: c.TurnRate}
	case ZoneCenter:
		return VelocityCommand{Linear: c.CreepSpeed}
	case ZoneRight:
		return VelocityCommand{Angular: -c.TurnRate}
	default:
		return VelocityCommand{}
	}
}

// Decision is the policy's output for one frame.
type Decision struct {
	Command VelocityCommand
	Zone    Zone
	// Index is the position of the deciding detection, or -1 when none.
	Index int
}

// Decide maps a frame's detections to a command. With no detections the
// command is zero.
func Decide(detections []detector.Detection, c Config) Decision {
	decision := Decision{Zone: ZoneNone, Index: -1}

	switch c.Selection {
	case SelectWidest:
		best := -1.0
		for i, d := range detections {
			if w := d.ApparentWidth(); w >= best {
				best = w
				decision.Index = i
			}
		}
		if decision.Index >= 0 {
			x, _ := detections[decision.Index].Center()
			decision.Zone = c.Classify(x)
			decision.Command = c.CommandFor(decision.Zone)
		}
	default:
		for i, d := range detections {
			x, _ := d.Center()
			decision.Zone = c.Classify(x)
			decision.Command = c.CommandFor(decision.Zone)
			decision.Index = i
		}
	}

	return decision
}
