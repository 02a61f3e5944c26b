package sprint

import (
	"fmt"
	"time"
)

// Countdown renders the time left until end: "3d 4h" while at least a day
// remains, "5h 12m" below that, and "ended" once now is past end.
func Countdown(end, now time.Time) string {
	if now.After(end) {
		return "ended"
	}
	d := end.Sub(now)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	minutes := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
