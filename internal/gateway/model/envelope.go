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

package model

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/bytedance/sonic"
)

// CurrentEnvelopeVersion is written by EncodeStateEnvelope when Version is unset.
const CurrentEnvelopeVersion = 1

// StateEnvelope wraps the opaque session snapshot stored in a project record.
type StateEnvelope struct {
	Version           int             `json:"version"`
	Session           json.RawMessage `json:"session"`
	TextureResolution *int            `json:"textureResolution,omitempty"`
	TextureUsage      json.RawMessage `json:"textureUsage,omitempty"`
	TextureAssets     json.RawMessage `json:"textureAssets,omitempty"`
}

// NewStateEnvelope returns an empty current-version envelope.
func NewStateEnvelope() *StateEnvelope {
	return &StateEnvelope{Version: CurrentEnvelopeVersion, Session: json.RawMessage(`{}`)}
}

// DecodeStateEnvelope reads an envelope of any vintage. Missing or malformed
// fields fall back to defaults; it never fails.
func DecodeStateEnvelope(raw []byte) *StateEnvelope {
	env := NewStateEnvelope()

	var fields map[string]json.RawMessage
	if err := sonic.Unmarshal(raw, &fields); err != nil || fields == nil {
		return env
	}

	if v, ok := fields["version"]; ok {
		var f float64
		if err := sonic.Unmarshal(v, &f); err == nil && f >= 1 && f == math.Trunc(f) && f <= math.MaxInt32 {
			env.Version = int(f)
		}
	}
	if v, ok := fields["session"]; ok && jsonKind(v) == '{' {
		env.Session = v
	}
	if v, ok := fields["textureResolution"]; ok {
		var f float64
		if err := sonic.Unmarshal(v, &f); err == nil && f > 0 && f == math.Trunc(f) && f <= math.MaxInt32 {
			n := int(f)
			env.TextureResolution = &n
		}
	}
	if v, ok := fields["textureUsage"]; ok && jsonKind(v) == '{' {
		env.TextureUsage = v
	}
	if v, ok := fields["textureAssets"]; ok {
		if k := jsonKind(v); k == '[' || k == '{' {
			env.TextureAssets = v
		}
	}
	return env
}

// EncodeStateEnvelope serializes env, filling defaults for unset fields.
func EncodeStateEnvelope(env *StateEnvelope) (json.RawMessage, error) {
	out := *env
	if out.Version < 1 {
		out.Version = CurrentEnvelopeVersion
	}
	if jsonKind(out.Session) != '{' {
		out.Session = json.RawMessage(`{}`)
	}
	return sonic.Marshal(&out)
}

// jsonKind returns the first significant byte of a JSON value, or 0.
func jsonKind(v []byte) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}
