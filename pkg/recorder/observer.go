package recorder

// Observer is told whenever recording starts or stops. RecordingChanged runs
// on the goroutine that called Start or Stop and must not call either.
type Observer interface {
	RecordingChanged(recording bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(recording bool)

// RecordingChanged calls f.
func (f ObserverFunc) RecordingChanged(recording bool) {
	f(recording)
}

// ChannelObserver forwards state changes to ch. Sends never block; a change is
// dropped if ch is full.
func ChannelObserver(ch chan<- bool) Observer {
	return ObserverFunc(func(recording bool) {
		select {
		case ch <- recording:
		default:
		}
	})
}

// Subscribe registers o for state change notifications.
func (r *Recorder) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// notify must be called with r.ctlMu held and r.mu released.
func (r *Recorder) notify(recording bool) {
	r.obsMu.Lock()
	observers := append([]Observer(nil), r.observers...)
	r.obsMu.Unlock()

	for _, o := range observers {
		o.RecordingChanged(recording)
	}
}
