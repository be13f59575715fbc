package graph

import "math"

// Breakdown holds every intermediate factor of a harmony computation.
type Breakdown struct {
	AvgTrait          float64 `json:"avg_trait"`
	Balance           float64 `json:"balance"`
	LevelFactor       float64 `json:"level_factor"`
	TraitVariance     float64 `json:"trait_variance"`
	VarianceFactor    float64 `json:"variance_factor"`
	Edges             int     `json:"edges"`
	ConnectionRatio   float64 `json:"connection_ratio"`
	ConnectionFactor  float64 `json:"connection_factor"`
	AvgEvolution      float64 `json:"avg_evolution"`
	EvoVariance       float64 `json:"evo_variance"`
	EvoVarianceFactor float64 `json:"evo_variance_factor"`
	EvolutionFactor   float64 `json:"evolution_factor"`
	Disharmony        float64 `json:"disharmony"`
	Raw               float64 `json:"raw"`

	// Harmony is the final score in [0,100].
	Harmony float64 `json:"harmony"`
}

// Harmony weights. They are empirically tuned; changing any of them changes
// game balance.
const (
	optimalTrait           = 0.5
	optimalConnectionRatio = 0.6
	optimalEvolution       = 2.5
	levelFactorCap         = 10.0

	varianceScale    = 10.0
	evoVarianceScale = 0.5
	connectionSlope  = 1.5

	weightBalance    = 0.4
	weightConnection = 0.3
	weightEvolution  = 0.3

	weightVariance    = 0.3
	weightEvoVariance = 0.3
	weightLevel       = 0.4
	disharmonyScale   = 0.5
)

// Score computes the harmony of nodes at the given structure level. It is a
// pure function of its inputs; an empty node set scores 0.
func Score(nodes []*Node, level int) Breakdown {
	var b Breakdown
	n := len(nodes)
	if n == 0 {
		return b
	}
	count := float64(n)

	var traitSum, levelSum float64
	degrees := 0
	for _, node := range nodes {
		traitSum += node.Trait
		levelSum += float64(node.Level)
		degrees += node.Degree()
	}
	b.AvgTrait = traitSum / count
	b.AvgEvolution = levelSum / count

	b.Balance = 1 - math.Abs(optimalTrait-b.AvgTrait)*2
	b.LevelFactor = math.Min(1, float64(level)/levelFactorCap)

	var traitVar, evoVar float64
	for _, node := range nodes {
		traitVar += (node.Trait - b.AvgTrait) * (node.Trait - b.AvgTrait)
		d := float64(node.Level) - b.AvgEvolution
		evoVar += d * d
	}
	b.TraitVariance = traitVar / count
	b.EvoVariance = evoVar / count
	if n > 1 {
		b.VarianceFactor = math.Min(1, b.TraitVariance*varianceScale)
		b.EvoVarianceFactor = math.Min(1, b.EvoVariance*evoVarianceScale)
	}

	b.Edges = degrees / 2
	if n > 1 {
		possible := count * (count - 1) / 2
		b.ConnectionRatio = float64(b.Edges) / possible
		b.ConnectionFactor = clamp01(1 - math.Abs(optimalConnectionRatio-b.ConnectionRatio)*connectionSlope)
	}

	b.EvolutionFactor = clamp01(1 - math.Abs(optimalEvolution-b.AvgEvolution)/optimalEvolution)

	b.Disharmony = (b.VarianceFactor*weightVariance +
		b.EvoVarianceFactor*weightEvoVariance +
		b.LevelFactor*weightLevel) * disharmonyScale
	b.Raw = b.Balance*weightBalance +
		b.ConnectionFactor*weightConnection +
		b.EvolutionFactor*weightEvolution
	b.Harmony = clamp01(b.Raw*(1-b.Disharmony)) * 100
	return b
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Hints returned by Hint.
const (
	HintMoreLogic        = "Try adding more logic to some elements for better balance."
	HintMoreLove         = "Try adding more love to some elements for better balance."
	HintMoreConnections  = "Your structure needs more connections between elements."
	HintFewerConnections = "Your structure may have too many connections. Try a more elegant approach."
	HintEvolve           = "Try evolving some elements to increase complexity."
	HintShapes           = "Your structure is well-balanced. Consider changing some shapes for variety."
)

// Hint picks the single most useful suggestion for nodes.
func Hint(nodes []*Node) string {
	avgTrait := optimalTrait
	avgLevel := 1.0
	ratio := 0.0
	if len(nodes) > 0 {
		b := Score(nodes, 1)
		avgTrait = b.AvgTrait
		avgLevel = b.AvgEvolution
		ratio = b.ConnectionRatio
	}

	switch {
	case math.Abs(avgTrait-optimalTrait) > 0.2:
		if avgTrait > optimalTrait {
			return HintMoreLogic
		}
		return HintMoreLove
	case ratio < 0.3:
		return HintMoreConnections
	case ratio > 0.8:
		return HintFewerConnections
	case avgLevel < 2:
		return HintEvolve
	default:
		return HintShapes
	}
}
