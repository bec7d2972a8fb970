// Package ordernumber formats and sequences human readable order numbers of
// the form ORD-YYYYMMDD-NNNN.
package ordernumber

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const prefix = "ORD"

// DayPrefix returns the shared prefix of every number issued on the given day
func DayPrefix(day time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, day.UTC().Format("20060102"))
}

// Format renders the number for sequence seq on day. Sequences above 9999 widen.
func Format(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", DayPrefix(day), seq)
}

// ParseSequence extracts the trailing sequence of an order number
func ParseSequence(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || !strings.HasPrefix(number, prefix+"-") {
		return 0, fmt.Errorf("malformed order number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("malformed order number %q", number)
	}
	return seq, nil
}

// Next returns the number following latest, the highest number already issued
// on day. An empty latest starts the day at 0001.
func Next(day time.Time, latest string) (string, error) {
	if latest == "" {
		return Format(day, 1), nil
	}
	if !strings.HasPrefix(latest, DayPrefix(day)) {
		return "", fmt.Errorf("order number %q does not belong to %s", latest, day.UTC().Format("2006-01-02"))
	}
	seq, err := ParseSequence(latest)
	if err != nil {
		return "", err
	}
	return Format(day, seq+1), nil
}
