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

package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-arcade/modelgate/pkg/id"
)

func TestGenerators(t *testing.T) {
	tests := []struct {
		name    string
		gen     func() string
		wantLen int
	}{
		{name: "uuid", gen: id.GetUUID, wantLen: 36},
		{name: "uuid without dashes", gen: id.GetUUIDWithoutDashes, wantLen: 32},
		{name: "ulid", gen: id.GetULID, wantLen: 26},
		{name: "xid", gen: id.GetXid, wantLen: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := tt.gen(), tt.gen()
			assert.Len(t, a, tt.wantLen)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestGetULID_Sortable(t *testing.T) {
	prev := id.GetULID()
	for i := 0; i < 100; i++ {
		next := id.GetULID()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestShortId(t *testing.T) {
	assert.NotEmpty(t, id.ShortId())
}
