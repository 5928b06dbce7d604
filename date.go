package fatvfs

import (
	"time"
)

// Date is a FAT date stamp with its fields exactly as stored on the volume.
// Year is absolute, Month and Day are not checked in any way.
type Date struct {
	Year  uint16
	Month uint16
	Day   uint16
}

// Time is a FAT time stamp with its fields exactly as stored on the volume.
type Time struct {
	Hour   uint16
	Min    uint16
	Sec    uint16
	Millis uint16
}

// DateTime combines a date and a time stamp of a directory entry.
type DateTime struct {
	Date Date
	Time Time
}

// ParseDate reads the given input as a date as described in the Microsoft FAT documentation:
//
//	A FAT directory entry date stamp is a 16- bit field that is basically a
//	date relative to the MS- DOS epoch of 01/01 / 19 80. Here is the format (bit 0 is the
//	LSB of the 16- bit word, bit 15 is the MSB of the 16- bit word):
//	 Bits 0–4: Day of month, valid value range 1- 31 inclusive.
//	 Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//	 Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive
//	 (1980–2107).
//
// Invalid values such as a day or month of 0 are kept as they are. It is up to
// the user of the Date to reject them.
func ParseDate(input uint16) Date {
	return Date{
		Year:  1980 + input>>9,
		Month: input >> 5 & 0x0F,
		Day:   input & 0x1F,
	}
}

// ParseTime reads the given input as a time as described in the Microsoft FAT documentation:
//
//	A FAT directory entry time stamp is a 16- bit field that has a
//	granularity of 2 seconds. Here is the format (bit 0 is the LSB of the 16- bit word, bit
//	15 is the MSB of the 16- bit word).
//	 Bits 0–4: 2- second count, valid value range 0–29 inclusive (0 – 58 seconds).
//	 Bits 5–10: Minutes, valid value range 0–59 inclusive.
//	 Bits 11–15: Hours, valid value range 0–23 inclusive.
//	The valid time range is from Midnight 00:00:00 to 23:59:58.
func ParseTime(input uint16) Time {
	return Time{
		Hour: input >> 11,
		Min:  input >> 5 & 0x3F,
		Sec:  (input & 0x1F) * 2,
	}
}

// ParseDateTime parses a date and a time stamp.
func ParseDateTime(date, t uint16) DateTime {
	return DateTime{
		Date: ParseDate(date),
		Time: ParseTime(t),
	}
}

// Valid reports whether all fields are inside of the ranges allowed for FAT timestamps.
func (d DateTime) Valid() bool {
	return d.Date.Year >= 1980 &&
		d.Date.Month >= 1 && d.Date.Month <= 12 &&
		d.Date.Day >= 1 && d.Date.Day <= 31 &&
		d.Time.Hour <= 23 && d.Time.Min <= 59 && d.Time.Sec <= 59
}

// GoTime converts the DateTime to a time.Time in UTC.
// The value time.Time{} is returned if any field is invalid so that time.Time.IsZero() can be used.
func (d DateTime) GoTime() time.Time {
	if !d.Valid() {
		return time.Time{}
	}

	return time.Date(
		int(d.Date.Year), time.Month(d.Date.Month), int(d.Date.Day),
		int(d.Time.Hour), int(d.Time.Min), int(d.Time.Sec), int(d.Time.Millis)*int(time.Millisecond),
		time.UTC,
	)
}
