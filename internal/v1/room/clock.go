package room

import "time"

// now returns the current instant in UTC. Persisted timestamps are
// RFC3339/ISO-8601, which time.Time's default JSON marshaling already
// produces.
func now() time.Time {
	return time.Now().UTC()
}
