package session

import "math"

// Difficulty range of the target knob.
const (
	MinDifficulty     = 1.0
	MaxDifficulty     = 10.0
	DefaultDifficulty = 6.0
)

// ClampDifficulty keeps d inside [MinDifficulty, MaxDifficulty]. NaN
// becomes DefaultDifficulty.
func ClampDifficulty(d float64) float64 {
	if math.IsNaN(d) {
		return DefaultDifficulty
	}
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, d))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// HasTarget reports whether completing level requires reaching a target.
// Level 1 and the lowest difficulty never do.
func HasTarget(level int, difficulty float64) bool {
	return level > 1 && difficulty > MinDifficulty
}

// Target returns the harmony percentage needed to complete level.
//
// Difficulty splits into three bands (easy 2-4, normal 5-8, hard 9-10),
// each with its own base, per-level growth, cap and a small variation
// cycling with level mod 3.
func Target(level int, difficulty float64) float64 {
	lvl := float64(level)
	variation := float64(level % 3)

	switch {
	case difficulty <= 1:
		return 0
	case difficulty <= 4:
		t := (difficulty - 2) / 2
		return math.Min(75, 30+t*10+variation*2+(lvl-1)*3)
	case difficulty <= 8:
		t := (difficulty - 5) / 3
		return math.Min(85, 40+t*10+variation*3+(lvl-1)*4)
	default:
		t := difficulty - 9
		return math.Min(95, 50+t*10+variation*5+(lvl-1)*5)
	}
}

// Bonus returns the score awarded for finishing level with harmony against
// target. Levels above 7 pay one point per 2.5% over target, lower levels
// one point per 5%.
func Bonus(level int, difficulty, harmony, target float64) float64 {
	if !HasTarget(level, difficulty) {
		return 0
	}
	if level > 7 {
		return (harmony - target) / 2.5
	}
	return (harmony - target) / 5
}

// DifficultyLabel names the band d falls in.
func DifficultyLabel(d float64) string {
	switch {
	case d <= 2:
		return "No Target"
	case d <= 4:
		return "Easy"
	case d <= 8:
		return "Normal"
	default:
		return "Hard"
	}
}
