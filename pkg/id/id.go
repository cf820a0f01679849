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

package id

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/xid"
	"github.com/teris-io/shortid"
)

// GetUUID returns a random UUID string.
func GetUUID() string {
	return uuid.NewString()
}

// GetUUIDWithoutDashes returns a random UUID with the dashes stripped.
func GetUUIDWithoutDashes() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetULID returns a lexicographically sortable identifier.
// ulid.Make is safe for concurrent use and monotonic within a millisecond.
func GetULID() string {
	return ulid.Make().String()
}

// GetXid returns a 20 character globally unique id.
func GetXid() string {
	return xid.New().String()
}

// ShortId returns a short url-safe id, or "" when the generator fails.
func ShortId() string {
	s, err := shortid.Generate()
	if err != nil {
		return ""
	}
	return s
}
