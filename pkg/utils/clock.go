// pkg/utils/clock.go

package utils

import "time"

func Now() time.Time {
	return time.Now()
}
