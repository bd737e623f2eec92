// Package search implements Cat Swarm Optimization for hyperparameter
// tuning. The swarm minimizes a black-box objective over a bounded box;
// each iteration most cats mutate locally (seeking) while the rest chase
// the best known position (tracing).
package search

import (
	"log"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Objective scores a candidate position; lower is better. Objectives
// may panic or return non-finite values, both are treated as the
// configured penalty.
type Objective func(position []float64) float64

// Box bounds the search space per dimension.
type Box struct {
	Min []float64
	Max []float64
}

// Dims returns the dimensionality of the box.
func (b Box) Dims() int {
	return len(b.Min)
}

func (b Box) validate() error {
	if len(b.Min) == 0 {
		return errors.New("empty search box")
	}
	if len(b.Min) != len(b.Max) {
		return errors.Errorf("box bounds disagree: %d mins, %d maxes", len(b.Min), len(b.Max))
	}
	for d := range b.Min {
		if !(b.Min[d] < b.Max[d]) {
			return errors.Errorf("dimension %d: min %g not below max %g", d, b.Min[d], b.Max[d])
		}
	}
	return nil
}

func (b Box) clamp(position []float64) {
	for d := range position {
		if position[d] < b.Min[d] {
			position[d] = b.Min[d]
		}
		if position[d] > b.Max[d] {
			position[d] = b.Max[d]
		}
	}
}

// Config configures the swarm. Zero values take the defaults.
type Config struct {
	Population   int     // number of cats (default: 5)
	Iterations   int     // search iterations (default: 10)
	SMP          int     // seeking memory pool: candidate copies per seeking cat (default: 5)
	SRD          float64 // seeking range, as a fraction of each dimension's span (default: 0.2)
	MixtureRatio float64 // fraction of cats in tracing mode each iteration (default: 0.3)
	Velocity     float64 // tracing acceleration constant (default: 2.0)
	Penalty      float64 // objective value for failed evaluations (default: 1e9)
	Seed         int64
	Logf         func(format string, args ...any)
}

// Result is the best position found and its objective value.
type Result struct {
	Position []float64
	Value    float64
	Evals    int
}

type cat struct {
	position []float64
	velocity []float64
	value    float64
}

// Swarm runs Cat Swarm Optimization.
type Swarm struct {
	config Config
	rng    *rand.Rand
	logf   func(format string, args ...any)
}

// New creates a swarm with the given configuration.
func New(config Config) *Swarm {
	if config.Population == 0 {
		config.Population = 5
	}
	if config.Iterations == 0 {
		config.Iterations = 10
	}
	if config.SMP == 0 {
		config.SMP = 5
	}
	if config.SRD == 0 {
		config.SRD = 0.2
	}
	if config.MixtureRatio == 0 {
		config.MixtureRatio = 0.3
	}
	if config.Velocity == 0 {
		config.Velocity = 2.0
	}
	if config.Penalty == 0 {
		config.Penalty = 1e9
	}
	logf := config.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Swarm{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		logf:   logf,
	}
}

// Minimize searches the box for the position with the lowest objective
// value.
func (s *Swarm) Minimize(objective Objective, box Box) (*Result, error) {
	if err := box.validate(); err != nil {
		return nil, errors.Wrap(err, "catswarm")
	}
	if objective == nil {
		return nil, errors.New("catswarm: nil objective")
	}

	dims := box.Dims()
	evals := 0
	score := func(position []float64) float64 {
		evals++
		return s.guardedEval(objective, position)
	}

	cats := make([]*cat, s.config.Population)
	best := &Result{Value: math.Inf(1)}
	for i := range cats {
		c := &cat{
			position: make([]float64, dims),
			velocity: make([]float64, dims),
		}
		for d := 0; d < dims; d++ {
			c.position[d] = box.Min[d] + s.rng.Float64()*(box.Max[d]-box.Min[d])
		}
		c.value = score(c.position)
		cats[i] = c
		s.observe(best, c)
	}

	for iter := 0; iter < s.config.Iterations; iter++ {
		for _, c := range cats {
			if s.rng.Float64() < s.config.MixtureRatio {
				s.trace(c, best, box, score)
			} else {
				s.seek(c, box, score)
			}
			s.observe(best, c)
		}
		s.logf("catswarm iter %d: best value=%.6f at %v", iter, best.Value, best.Position)
	}

	if math.IsInf(best.Value, 1) {
		return nil, errors.New("catswarm: no candidate evaluated successfully")
	}
	best.Evals = evals
	return best, nil
}

// seek mutates SMP copies of the cat within SRD of its position and
// greedily keeps the best copy, the original included.
func (s *Swarm) seek(c *cat, box Box, score func([]float64) float64) {
	bestPos := c.position
	bestVal := c.value
	for i := 0; i < s.config.SMP; i++ {
		candidate := make([]float64, len(c.position))
		for d := range candidate {
			span := box.Max[d] - box.Min[d]
			candidate[d] = c.position[d] + (s.rng.Float64()*2-1)*s.config.SRD*span
		}
		box.clamp(candidate)

		if v := score(candidate); v < bestVal {
			bestPos, bestVal = candidate, v
		}
	}
	c.position = bestPos
	c.value = bestVal
}

// trace accelerates the cat toward the global best and re-scores it.
func (s *Swarm) trace(c *cat, best *Result, box Box, score func([]float64) float64) {
	for d := range c.position {
		target := c.position[d]
		if best.Position != nil {
			target = best.Position[d]
		}
		c.velocity[d] += s.rng.Float64() * s.config.Velocity * (target - c.position[d])
		c.position[d] += c.velocity[d]
	}
	box.clamp(c.position)
	c.value = score(c.position)
}

func (s *Swarm) observe(best *Result, c *cat) {
	if c.value < best.Value {
		best.Value = c.value
		best.Position = append([]float64(nil), c.position...)
	}
}

// guardedEval runs the objective, converting panics and non-finite
// results into the penalty value so one bad candidate cannot abort the
// search.
func (s *Swarm) guardedEval(objective Objective, position []float64) (value float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("catswarm: objective panicked at %v: %v", position, r)
			value = s.config.Penalty
		}
	}()
	value = objective(position)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return s.config.Penalty
	}
	return value
}
