// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package duration parses lifetimes such as API key TTLs.
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	calendarRegex = regexp.MustCompile(`^(\d+)([dwMy])$`)

	ErrInvalidFormat = errors.New("invalid duration format")
	ErrNegative      = errors.New("negative duration")
)

const day = 24 * time.Hour

// ParseTTL parses a lifetime. It accepts Go durations ("90m", "1h30m") and
// the calendar units d, w, M (30 days) and y (365 days), e.g. "90d".
// "", "0" and "never" mean no expiry and return 0.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "0", "never":
		return 0, nil
	}

	if m := calendarRegex.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidFormat, s)
		}
		unit := map[string]time.Duration{"d": day, "w": 7 * day, "M": 30 * day, "y": 365 * day}[m[2]]
		if n > int64(1<<63-1)/int64(unit) {
			return 0, fmt.Errorf("%w: %s overflows", ErrInvalidFormat, s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidFormat, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	return d, nil
}

// Value adapts ParseTTL to pflag so commands can take --ttl 90d.
type Value struct {
	D   time.Duration
	raw string
}

func (v *Value) String() string {
	if v.raw == "" {
		return "never"
	}
	return v.raw
}

func (v *Value) Set(s string) error {
	d, err := ParseTTL(s)
	if err != nil {
		return err
	}
	v.D, v.raw = d, s
	return nil
}

func (v *Value) Type() string { return "ttl" }
