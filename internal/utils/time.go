package utils

import (
	"strconv"
	"time"
)

// MpesaTimeLayout is the compact local-time layout used by Daraja (YYYYMMDDHHmmss).
const MpesaTimeLayout = "20060102150405"

// MpesaLocation is the zone Daraja timestamps are written in.
func MpesaLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// ParseMpesaTimestamp reads a TransactionDate value, which arrives as a JSON number.
func ParseMpesaTimestamp(value int64, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(MpesaTimeLayout, strconv.FormatInt(value, 10), loc)
}
