package sandbox

import (
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

type Option func(*Simulator)

func WithCostModel(model cost.CostModel) Option {
	return func(s *Simulator) {
		s.costModel = model
	}
}

func WithSlippageModel(model cost.SlippageModel) Option {
	return func(s *Simulator) {
		s.slippageModel = model
	}
}

func WithFillTiming(timing FillTiming) Option {
	return func(s *Simulator) {
		s.timing = timing
	}
}

// WithVolumeParticipation caps each fill at the given fraction of the bar volume. Orders larger
// than the cap fill partially across bars.
func WithVolumeParticipation(rate fixed.Point) Option {
	return func(s *Simulator) {
		s.participation = rate
	}
}

func WithExecutionID(executionID utility.ExecutionID) Option {
	return func(s *Simulator) {
		s.executionID = executionID
	}
}
