package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Params are the numeric knobs a strategy is configured with.
type Params map[string]float64

func (p Params) int(name string, fallback int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return fallback
}

// Definition is a constructed strategy together with the history depth it needs.
type Definition struct {
	Name     string
	Strategy Strategy
	Depth    int
}

type factory func(Params) Definition

var registry = map[string]factory{
	"constant": func(p Params) Definition {
		exposure := 1.0
		if v, ok := p["exposure"]; ok {
			exposure = v
		}
		return Definition{Strategy: Constant{Exposure: fixed.FromFloat64(exposure)}, Depth: 1}
	},
	"momentum": func(p Params) Definition {
		m := NewMomentum(p.int("lookback", 252), p.int("skip", 21))
		return Definition{Strategy: m, Depth: m.Lookback + 1}
	},
	"carry": func(p Params) Definition {
		c := NewCarry(p.int("lookback", 21))
		return Definition{Strategy: c, Depth: c.Lookback + 1}
	},
	"mean_reversion": func(p Params) Definition {
		m := NewMeanReversion(p.int("lookback", 63))
		return Definition{Strategy: m, Depth: m.Lookback}
	},
}

// New builds a registered strategy. A "scale" parameter wraps the result in Scaled.
func New(name string, params Params) (Definition, error) {
	build, ok := registry[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownStrategy, name, Names())
	}

	def := build(params)
	def.Name = name
	if scale, ok := params["scale"]; ok {
		def.Strategy = Scaled{Strategy: def.Strategy, Factor: fixed.FromFloat64(scale)}
	}
	return def, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
