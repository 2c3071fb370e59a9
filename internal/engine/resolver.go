package engine

import (
	"math"
	"math/rand"

	"github.com/civforge/civsim/internal/domain/civ"
)

// OutcomeKind classifies the result of a pairwise encounter.
type OutcomeKind string

const (
	OutcomeAlliance   OutcomeKind = "alliance"
	OutcomeConflict   OutcomeKind = "conflict"
	OutcomeConquest   OutcomeKind = "conquest"
	OutcomeDeterrence OutcomeKind = "deterrence"
)

// InteractionOutcome is the ephemeral result of resolving one pair. It is
// produced by the Resolver and consumed by Dynamics within the same tick.
// Deltas are signed; negative means loss.
type InteractionOutcome struct {
	Kind OutcomeKind

	AID string
	BID string

	// Attacker is the id of the initiating side for conflict, conquest and
	// deterrence outcomes; empty for alliances.
	Attacker string

	APopDelta float64
	AResDelta float64
	BPopDelta float64
	BResDelta float64
}

// Tunables are the constants of the interaction payoff structure.
type Tunables struct {
	// CooperationBonus is the resource gain each side takes from an
	// alliance encounter.
	CooperationBonus float64 `yaml:"cooperation_bonus" json:"cooperation_bonus"`

	// ConflictLossFactor scales the population and resource loss the
	// weaker side suffers in an aggressive-vs-aggressive conflict.
	ConflictLossFactor float64 `yaml:"conflict_loss_factor" json:"conflict_loss_factor"`

	// ConquestTransferFactor is the fraction of the diplomatic side's
	// population and resources transferred on a successful conquest.
	ConquestTransferFactor float64 `yaml:"conquest_transfer_factor" json:"conquest_transfer_factor"`

	// ConquestScale tunes how steeply the conquest probability grows with
	// the aggressor's population advantage.
	ConquestScale float64 `yaml:"conquest_scale" json:"conquest_scale"`
}

// DefaultTunables returns the payoff constants used when the configuration
// does not override them.
func DefaultTunables() Tunables {
	return Tunables{
		CooperationBonus:       2.0,
		ConflictLossFactor:     0.30,
		ConquestTransferFactor: 0.25,
		ConquestScale:          1.0,
	}
}

// attritionShare is the fraction of the inflicted population loss the
// conflict winner suffers itself.
const attritionShare = 0.25

// ConquestCurve maps attacker and defender population to the probability of
// a successful conquest. It must be monotone increasing in the attacker's
// advantage. The exact numeric form is a modeling choice, so it is pluggable
// behind the Resolver rather than hard-coded.
type ConquestCurve func(attackerPop, defenderPop, scale float64) float64

// RatioConquestCurve is the default: p = a / (a + scale*d). Monotone in the
// population ratio, 0.5 at parity when scale is 1, approaching 1 as the
// advantage grows.
func RatioConquestCurve(attackerPop, defenderPop, scale float64) float64 {
	denom := attackerPop + scale*defenderPop
	if denom <= 0 {
		return 0
	}
	return attackerPop / denom
}

// LogisticConquestCurve is the alternative form: logistic in the normalized
// population difference. Steeper around parity than the ratio curve.
func LogisticConquestCurve(attackerPop, defenderPop, scale float64) float64 {
	total := attackerPop + defenderPop
	if total <= 0 {
		return 0
	}
	x := (attackerPop - defenderPop) / total
	return 1.0 / (1.0 + math.Exp(-4*scale*x))
}

// Resolver computes the outcome of a pairwise encounter as a function of the
// two strategies and relative strength, using the run's random source. It
// never mutates its inputs; Dynamics applies the effect.
type Resolver struct {
	tunables Tunables
	curve    ConquestCurve
}

// NewResolver creates a resolver with the given payoff constants and the
// default ratio conquest curve.
func NewResolver(t Tunables) *Resolver {
	return &Resolver{tunables: t, curve: RatioConquestCurve}
}

// SetConquestCurve swaps the conquest probability function.
func (r *Resolver) SetConquestCurve(curve ConquestCurve) {
	if curve != nil {
		r.curve = curve
	}
}

// Tunables returns the resolver's payoff constants.
func (r *Resolver) Tunables() Tunables {
	return r.tunables
}

// Resolve computes the outcome for a pair of alive civilizations. Resolving
// an extinct party is a scheduler bug and returns InvalidStateError.
//
// The draw order from rng is fixed per outcome branch, which keeps runs
// byte-identical for a given seed.
func (r *Resolver) Resolve(a, b *civ.Civilization, rng *rand.Rand) (InteractionOutcome, error) {
	if !a.Alive() {
		return InteractionOutcome{}, &InvalidStateError{Op: "Resolve", CivID: a.ID, Reason: "extinct civilization in pairing"}
	}
	if !b.Alive() {
		return InteractionOutcome{}, &InvalidStateError{Op: "Resolve", CivID: b.ID, Reason: "extinct civilization in pairing"}
	}

	out := InteractionOutcome{AID: a.ID, BID: b.ID}

	switch {
	case a.Strategy == civ.StrategyDiplomatic && b.Strategy == civ.StrategyDiplomatic:
		out.Kind = OutcomeAlliance
		out.AResDelta = r.tunables.CooperationBonus
		out.BResDelta = r.tunables.CooperationBonus

	case a.Strategy == civ.StrategyAggressive && b.Strategy == civ.StrategyAggressive:
		out.Kind = OutcomeConflict
		r.resolveConflict(&out, a, b, rng)

	default:
		r.resolveMixed(&out, a, b, rng)
	}

	return out, nil
}

// resolveConflict handles aggressive-vs-aggressive encounters: the stronger
// side inflicts losses on the weaker and suffers attrition itself.
func (r *Resolver) resolveConflict(out *InteractionOutcome, a, b *civ.Civilization, rng *rand.Rand) {
	aStronger := a.Population > b.Population
	if a.Population == b.Population {
		aStronger = rng.Float64() < 0.5
	}

	strong, weak := a, b
	if !aStronger {
		strong, weak = b, a
	}
	out.Attacker = strong.ID

	// Stochastic modulation in [0.5, 1.0] of the configured loss factor.
	mod := 0.5 + rng.Float64()*0.5
	popLoss := r.tunables.ConflictLossFactor * mod * weak.Population
	resLoss := r.tunables.ConflictLossFactor * mod * weak.Resources

	weakPopDelta := -popLoss
	weakResDelta := -resLoss
	strongPopDelta := -attritionShare * popLoss
	strongResDelta := resLoss / 2 // plunder

	if aStronger {
		out.APopDelta, out.AResDelta = strongPopDelta, strongResDelta
		out.BPopDelta, out.BResDelta = weakPopDelta, weakResDelta
	} else {
		out.APopDelta, out.AResDelta = weakPopDelta, weakResDelta
		out.BPopDelta, out.BResDelta = strongPopDelta, strongResDelta
	}
}

// resolveMixed handles diplomatic-vs-aggressive encounters: a
// strength-weighted conquest attempt that either extracts population and
// resources or is deterred with no transfer.
func (r *Resolver) resolveMixed(out *InteractionOutcome, a, b *civ.Civilization, rng *rand.Rand) {
	agg, dip := a, b
	if a.Strategy == civ.StrategyDiplomatic {
		agg, dip = b, a
	}
	out.Attacker = agg.ID

	p := r.curve(agg.Population, dip.Population, r.tunables.ConquestScale)
	if rng.Float64() >= p {
		out.Kind = OutcomeDeterrence
		return
	}

	out.Kind = OutcomeConquest
	popTake := r.tunables.ConquestTransferFactor * dip.Population
	resTake := r.tunables.ConquestTransferFactor * dip.Resources

	if agg == a {
		out.APopDelta, out.AResDelta = popTake, resTake
		out.BPopDelta, out.BResDelta = -popTake, -resTake
	} else {
		out.APopDelta, out.AResDelta = -popTake, -resTake
		out.BPopDelta, out.BResDelta = popTake, resTake
	}
}
