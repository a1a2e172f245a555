package audio

// ----- Envelope ----- //

/*
  1 +     ,------------.
    |    /              \
    |   /                \
    |  /                  \
  0 +-'--------------------`---
    |attack|    gate     |release|
*/

// envelope is a linear attack/release level shared by both channels.
type envelope struct {
	sampleRate  float64
	value       float64 // 0-1
	attackStep  float64
	releaseStep float64
}

func newEnvelope(sampleRate float64) *envelope {
	e := &envelope{sampleRate: sampleRate}
	e.setTimes(0, 0)
	return e
}

// setTimes turns attack/release seconds into per-sample increments. A zero
// time jumps straight to the target.
func (e *envelope) setTimes(attack float64, release float64) {
	e.attackStep = 1.0
	if attack > 0 {
		e.attackStep = 1.0 / (attack * e.sampleRate)
	}
	e.releaseStep = 1.0
	if release > 0 {
		e.releaseStep = 1.0 / (release * e.sampleRate)
	}
}

// process scales buf in place. gate is held for the whole block.
func (e *envelope) process(buf []float64, gate bool) {
	for i := range buf {
		if gate {
			e.value += e.attackStep
			if e.value > 1.0 {
				e.value = 1.0
			}
		} else {
			e.value -= e.releaseStep
			if e.value < 0.0 {
				e.value = 0.0
			}
		}
		buf[i] *= e.value
	}
}
