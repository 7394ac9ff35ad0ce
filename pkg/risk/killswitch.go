package risk

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
)

const KillSwitchEnv = "KILL_SWITCH"

// KillSwitch is an advisory flag read at every evaluation.
type KillSwitch interface {
	Engaged() bool
}

// Static is a kill switch fixed at construction.
type Static bool

func (s Static) Engaged() bool { return bool(s) }

// EnvKillSwitch reads an environment variable on every call, so flipping the variable takes
// effect without a restart.
type EnvKillSwitch struct {
	name   string
	lookup func(string) (string, bool)
}

func NewEnvKillSwitch(name string) EnvKillSwitch {
	if name == "" {
		name = KillSwitchEnv
	}
	return EnvKillSwitch{name: name, lookup: os.LookupEnv}
}

func (e EnvKillSwitch) Engaged() bool {
	value, ok := e.lookup(e.name)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Switch is a kill switch that can be flipped concurrently with evaluation.
type Switch struct {
	engaged atomic.Bool
}

func NewSwitch(engaged bool) *Switch {
	s := &Switch{}
	s.engaged.Store(engaged)
	return s
}

func (s *Switch) Engaged() bool    { return s.engaged.Load() }
func (s *Switch) Set(engaged bool) { s.engaged.Store(engaged) }

// Listen applies updates from the channel until it is closed or ctx is done.
func (s *Switch) Listen(ctx context.Context, updates <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case engaged, ok := <-updates:
			if !ok {
				return
			}
			s.Set(engaged)
		}
	}
}
