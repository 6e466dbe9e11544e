// Package duration parses human-entered timeout strings like "10m",
// "1h30m", "2 hours 15 minutes", or a bare number of seconds.
package duration

import (
	"math"
	"strings"
	"time"
	"unicode"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

// unitSeconds maps a unit's first letter to its length in seconds.
// Only the first letter after the digits is consulted, so "10m",
// "10min" and "10minutes" all mean ten minutes. That also means
// "10movies" parses as ten minutes; the laxity is intentional and
// matches what users type in practice.
var unitSeconds = map[rune]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// maxSeconds is the largest whole-second total representable as a
// time.Duration (int64 nanoseconds).
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Parse converts a free-form duration string into a non-negative
// time.Duration.
//
// The string is scanned left to right for tokens of the form
// <digits><unit-letter>. A number with no trailing letter counts as
// seconds. Unit letters are s, m, h, d (case-insensitive); words and
// punctuation between tokens are ignored. Multiple tokens accumulate:
// "1h30m" is 5400 seconds. An empty string, or one containing no
// tokens at all, fails with a duration.invalid error.
func Parse(s string) (time.Duration, error) {
	runes := []rune(strings.TrimSpace(s))

	var total int64
	found := false

	i := 0
	for i < len(runes) {
		if !unicode.IsDigit(runes[i]) {
			i++
			continue
		}

		// Consume the digit run.
		var value int64
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			d := int64(runes[i] - '0')
			if value > (maxSeconds-d)/10 {
				return 0, wherrors.New(wherrors.CodeDurationInvalid, "duration is too large")
			}
			value = value*10 + d
			i++
		}

		// The first letter after the digits picks the unit; any
		// remaining letters belong to the same word and are skipped.
		unit := int64(1)
		if i < len(runes) && unicode.IsLetter(runes[i]) {
			mult, ok := unitSeconds[unicode.ToLower(runes[i])]
			if !ok {
				return 0, wherrors.New(wherrors.CodeDurationInvalid,
					"unknown duration unit "+string(runes[i])+" (use s, m, h or d)")
			}
			unit = mult
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}
		}

		if value > maxSeconds/unit || total > maxSeconds-value*unit {
			return 0, wherrors.New(wherrors.CodeDurationInvalid, "duration is too large")
		}
		total += value * unit
		found = true
	}

	if !found {
		return 0, wherrors.New(wherrors.CodeDurationInvalid, "timeout is not a valid duration or number")
	}

	return time.Duration(total) * time.Second, nil
}
