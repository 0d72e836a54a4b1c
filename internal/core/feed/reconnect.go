package feed

import "time"

// ReconnectModerator is an exponential backoff without jitter. It only keeps
// a firehose of disconnect notifications from spinning.
type ReconnectModerator struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewReconnectModerator starts at floor and never exceeds ceiling
func NewReconnectModerator(floor, ceiling time.Duration) *ReconnectModerator {
	if floor <= 0 {
		floor = DefaultReconnectFloor
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &ReconnectModerator{floor: floor, ceiling: ceiling, current: floor}
}

// OnDisconnected returns the delay to wait and doubles the next one
func (m *ReconnectModerator) OnDisconnected() time.Duration {
	delay := m.current
	m.current = min(m.ceiling, m.current*2)
	return delay
}

// OnConnected resets the delay to the floor
func (m *ReconnectModerator) OnConnected() {
	m.current = m.floor
}

// Current returns the delay the next disconnect will get
func (m *ReconnectModerator) Current() time.Duration {
	return m.current
}
