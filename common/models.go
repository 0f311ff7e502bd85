package common

import (
	"fmt"
	"time"
)

const DateLayout = "02/01/2006"

// LabelZone is the zone every hour and date label is rendered in.
const LabelZone = "UTC"

// HourLabel formats a dataset timestamp the way the time picker shows it,
// in UTC.
func HourLabel(t time.Time) string {
	return fmt.Sprintf("%02d:00", t.UTC().Hour())
}

func HourLabels(times []time.Time) []string {
	labels := make([]string, len(times))
	for i, t := range times {
		labels[i] = HourLabel(t)
	}
	return labels
}

func DateLabel(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
