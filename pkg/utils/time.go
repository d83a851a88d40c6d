package utils

import "time"

// Now is swapped out in tests that need a fixed clock.
var Now = func() time.Time {
	return time.Now().UTC()
}
