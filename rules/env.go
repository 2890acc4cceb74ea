package rules

import (
	"strings"

	"github.com/nstehr/vimy/vimy-faction/model"
)

// Env is what condition and score expressions see: one faction's
// balances plus the entity counts the caller chose to expose. Methods are
// callable from expr, e.g. `Has("barracks") && Resource("gold") > 400`.
type Env struct {
	Faction       string
	Resources     map[string]int
	Population    int
	PopulationCap int
	Elapsed       float64

	counts map[string]int
}

// NewEnv builds an environment for f. counts maps entity code to the
// number of live instances the faction owns and may be nil.
func NewEnv(f model.Faction, counts map[string]int, elapsed float64) Env {
	c := make(map[string]int, len(counts))
	for code, n := range counts {
		c[strings.ToLower(code)] += n
	}
	return Env{
		Faction:       f.ID,
		Resources:     f.Resources,
		Population:    f.Population,
		PopulationCap: f.PopulationCap,
		Elapsed:       elapsed,
		counts:        c,
	}
}

// CountTypes tallies items by TypeName, for building NewEnv counts.
func CountTypes[T interface{ TypeName() string }](items []T) map[string]int {
	out := make(map[string]int)
	for _, it := range items {
		out[strings.ToLower(it.TypeName())]++
	}
	return out
}

func (e Env) Has(code string) bool { return e.counts[strings.ToLower(code)] > 0 }

func (e Env) Count(code string) int { return e.counts[strings.ToLower(code)] }

func (e Env) Resource(name string) int { return e.Resources[name] }

func (e Env) ResourceSum() int {
	n := 0
	for _, v := range e.Resources {
		n += v
	}
	return n
}

func (e Env) FreeSlots() int { return e.PopulationCap - e.Population }
