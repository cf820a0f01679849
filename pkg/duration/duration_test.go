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

package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  time.Duration
		wantError error
	}{
		{"empty means never", "", 0, nil},
		{"zero", "0", 0, nil},
		{"never", "never", 0, nil},
		{"go seconds", "45s", 45 * time.Second, nil},
		{"go compound", "1h30m", 90 * time.Minute, nil},
		{"days", "30d", 30 * day, nil},
		{"weeks", "2w", 14 * day, nil},
		{"months", "6M", 180 * day, nil},
		{"years", "1y", 365 * day, nil},
		{"padded", " 7d ", 7 * day, nil},

		{"garbage", "abc", 0, ErrInvalidFormat},
		{"no unit", "100", 0, ErrInvalidFormat},
		{"unknown unit", "1x", 0, ErrInvalidFormat},
		{"float days", "1.5d", 0, ErrInvalidFormat},
		{"negative", "-1h", 0, ErrNegative},
		{"overflow", "999999999999y", 0, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTTL(tt.input)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValue(t *testing.T) {
	var v Value
	assert.Equal(t, "never", v.String())
	assert.Equal(t, "ttl", v.Type())
	require.NoError(t, v.Set("90d"))
	assert.Equal(t, 90*day, v.D)
	assert.Equal(t, "90d", v.String())
	assert.Error(t, v.Set("soon"))
	assert.Equal(t, 90*day, v.D)
}
