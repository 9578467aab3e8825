package director

// Default decay cadence: every 100 milliseconds of playback time the speed
// multiplier drops by 0.002.
const (
	DefaultRitInterval = 100000
	DefaultRitStep     = 0.002

	// minSpeed keeps a long closing phrase from decaying to a standstill.
	minSpeed = 0.1
)

// Pacer is the slice of the sequencer the ritardando effect drives.
type Pacer interface {
	Speed() float64
	SetSpeed(float64)
	// CurrentTimePos is the playback position in microseconds.
	CurrentTimePos() int64
}

// Ritardando slows playback gradually. While the state flag is armed, each
// heartbeat that lands on an interval boundary lowers the speed multiplier
// by one step.
type Ritardando struct {
	state    *State
	pacer    Pacer
	interval int64
	step     float64
}

// NewRitardando returns an effector with the default cadence.
func NewRitardando(state *State, pacer Pacer) *Ritardando {
	return &Ritardando{
		state:    state,
		pacer:    pacer,
		interval: DefaultRitInterval,
		step:     DefaultRitStep,
	}
}

// SetStep adjusts the per-interval speed decrement. Non-positive values are
// ignored.
func (r *Ritardando) SetStep(step float64) {
	if step > 0 {
		r.step = step
	}
}

// OnHeartbeat runs on the sequencer goroutine once per clock quantum.
func (r *Ritardando) OnHeartbeat() {
	if !r.state.Ritardando() {
		return
	}
	if r.pacer.CurrentTimePos()%r.interval != 0 {
		return
	}
	speed := r.pacer.Speed() - r.step
	if speed < minSpeed {
		speed = minSpeed
	}
	r.pacer.SetSpeed(speed)
}
