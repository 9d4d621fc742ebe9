package metronome

import (
	"github.com/taktell/taktell"
)

type (
	// Broker carries messages between the control goroutine and the audio
	// callback. Communication is strictly non-blocking on the callback
	// side: the engine drains ToEngine at the start of every process
	// period and reports back through ToModel with TrySend, so the
	// callback can never stall on a full or empty channel.
	Broker struct {
		ToEngine chan any
		ToModel  chan MsgToModel
	}

	// MsgToModel is the engine's per-period status report. Frequent fields
	// are unboxed to avoid allocations on the callback path; anything
	// infrequent travels boxed in Data.
	MsgToModel struct {
		Frame    int64
		BarTotal int
		Beat     int
		Tempo    float64
		End      bool

		HasTimebase bool
		Timebase    Timebase

		Data any
	}

	// ActiveMsg starts or stops the engine.
	ActiveMsg struct {
		Active bool
	}

	// VolumeMsg adjusts the per-click gains.
	VolumeMsg struct {
		Emphasis, Normal float64
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToEngine: make(chan any, 1024),
		ToModel:  make(chan MsgToModel, 1024),
	}
}

// SetPosition hands a freshly constructed position to the engine. The
// position must not be touched afterwards; the engine owns it from here on.
func (b *Broker) SetPosition(pos *taktell.Position) bool {
	return TrySend(b.ToEngine, any(pos))
}

// TrySend sends a value to a channel if it is not full. It is guaranteed to
// be non-blocking. Returns true if the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
