package model

// Default field geometry.
const (
	DefaultFieldLength = 120.0
	DefaultMidpoint    = 60.0
	DefaultEndZone     = 10.0
)

// Field describes the playing surface used to normalize events. MaxY is not a
// constant: it is measured from the dataset once per run and then frozen.
type Field struct {
	Length   float64
	Midpoint float64
	EndZone  float64
	MaxY     float64
}

// DefaultField returns the standard geometry with the given MaxY.
func DefaultField(maxY float64) Field {
	return Field{
		Length:   DefaultFieldLength,
		Midpoint: DefaultMidpoint,
		EndZone:  DefaultEndZone,
		MaxY:     maxY,
	}
}

// FieldBucketX partitions events by line-of-scrimmage zone.
type FieldBucketX int

// Line-of-scrimmage zones.
const (
	ZoneShort FieldBucketX = iota // yard line <= 10
	ZoneMid                       // 10 < yard line <= 20
	ZoneLong                      // yard line > 20
)

func (b FieldBucketX) String() string {
	switch b {
	case ZoneShort:
		return "0-10"
	case ZoneMid:
		return "10-20"
	case ZoneLong:
		return "20+"
	default:
		return "unknown"
	}
}

// FieldBucketY partitions events by sideline proximity of the punter.
type FieldBucketY int

// Sideline halves.
const (
	SideNear FieldBucketY = iota // y <= MaxY/2
	SideFar                      // y > MaxY/2
)

func (b FieldBucketY) String() string {
	switch b {
	case SideNear:
		return "near"
	case SideFar:
		return "far"
	default:
		return "unknown"
	}
}
