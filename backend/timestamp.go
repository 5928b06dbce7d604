package backend

import (
	"fmt"
	"time"

	"github.com/aligator/fatvfs"
	"github.com/aligator/fatvfs/checkpoint"
)

// fatEpoch is 1980-01-01T00:00:00Z in seconds since the Unix epoch.
const fatEpoch = 315532800

var daysInMonth = [12]int64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// FATTimestamp converts the fields of a FAT timestamp into a point in time.
// Only the date is validated: years before 1980, months outside of 1-12 and days
// outside of 1-31 result in ErrTimestampInvalid. Days are not checked against
// the length of the month.
func FATTimestamp(dt fatvfs.DateTime) (time.Time, error) {
	d := dt.Date
	if d.Year < 1980 || d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return time.Time{}, checkpoint.Wrap(fmt.Errorf("%04d-%02d-%02d", d.Year, d.Month, d.Day), ErrTimestampInvalid)
	}

	seconds := daysSince1980(d.Year, d.Month, d.Day)*86400 +
		int64(dt.Time.Hour)*3600 +
		int64(dt.Time.Min)*60 +
		int64(dt.Time.Sec)

	return time.Unix(fatEpoch+seconds, 0).UTC(), nil
}

// daysSince1980 expects an already validated date.
func daysSince1980(year, month, day uint16) int64 {
	var days int64
	for y := uint16(1980); y < year; y++ {
		if isLeapYear(y) {
			days += 366
		} else {
			days += 365
		}
	}

	for m := uint16(1); m < month; m++ {
		days += daysInMonth[m-1]
		if m == 2 && isLeapYear(year) {
			days++
		}
	}

	return days + int64(day) - 1
}

func isLeapYear(year uint16) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}
