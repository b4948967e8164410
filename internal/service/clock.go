package service

import "time"

const dateLayout = "2006-01-02"

// SystemClock reads the wall clock in the process's local time zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Today() string { return time.Now().Format(dateLayout) }
