package room

// Tick decrements pin's active question counter by one second (floored at
// zero) and reports the post-decrement value plus whether it just reached
// zero. Called once per second by the timer supervisor; the decrement
// itself happens under the registry lock so it is never raced against a
// concurrent submitAnswer/advance.
func (reg *Registry) Tick(pin string) (counter int, ended bool, err error) {
	pin = normalizePin(pin)
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[pin]
	if !ok {
		return 0, false, ErrRoomNotFound
	}
	if r.Status != StatusActive || r.GameInfo == nil {
		return 0, false, ErrStateClosed
	}
	if r.GameInfo.Counter > 0 {
		r.GameInfo.Counter--
	}
	counter = r.GameInfo.Counter
	return counter, counter == 0, nil
}
