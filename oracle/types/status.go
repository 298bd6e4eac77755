package types

import (
	"fmt"
	"strconv"
	"strings"
)

type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// ReportableStatuses are the codes an oracle may answer with.
var ReportableStatuses = []StatusCode{
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

var statusNames = map[StatusCode]string{
	StatusUnknown:       "unknown",
	StatusOnTime:        "on_time",
	StatusLateAirline:   "late_airline",
	StatusLateWeather:   "late_weather",
	StatusLateTechnical: "late_technical",
	StatusLateOther:     "late_other",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s StatusCode) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatusCode accepts either the numeric code or its name.
func ParseStatusCode(s string) (StatusCode, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		code := StatusCode(n)
		if !code.Valid() {
			return StatusUnknown, fmt.Errorf("invalid status code: %d", n)
		}
		return code, nil
	}

	for code, name := range statusNames {
		if name == s {
			return code, nil
		}
	}

	return StatusUnknown, fmt.Errorf("invalid status code: %q", s)
}
