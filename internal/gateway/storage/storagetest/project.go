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

// Package storagetest holds the behaviour every repo.Backend must share.
// Each adapter runs these suites against a fresh instance per subtest.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

// Factory returns a migrated, empty backend. It registers its own cleanup.
type Factory func(t *testing.T) repo.Backend

// RunProjectRepository exercises the revisioned project store.
func RunProjectRepository(t *testing.T, newBackend Factory) {
	t.Run("CompareAndSwapScenario", func(t *testing.T) { testCASScenario(t, newBackend(t)) })
	t.Run("CreateOnce", func(t *testing.T) { testCreateOnce(t, newBackend(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newBackend(t)) })
	t.Run("ConcurrentSaveIfRevision", func(t *testing.T) { testConcurrentCAS(t, newBackend(t)) })
	t.Run("ListByScopePrefix", func(t *testing.T) { testListByScopePrefix(t, newBackend(t)) })
	t.Run("SaveAndRemove", func(t *testing.T) { testSaveAndRemove(t, newBackend(t)) })
	t.Run("InvalidScope", func(t *testing.T) { testInvalidScope(t, newBackend(t)) })
}

func record(tenant, project, revision, state string) model.ProjectRecord {
	return model.ProjectRecord{
		Scope:    model.ProjectScope{TenantID: tenant, ProjectID: project},
		Revision: revision,
		State:    []byte(state),
	}
}

func testCASScenario(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	scope := model.ProjectScope{TenantID: "t1", ProjectID: "p1"}

	ok, err := b.SaveIfRevision(ctx, record("t1", "p1", model.NewRevision(), `{"a":1}`), nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := b.Find(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, got)
	r0 := got.Revision
	assert.NotEmpty(t, r0)

	wrong := "wrong"
	ok, err = b.SaveIfRevision(ctx, record("t1", "p1", model.NewRevision(), `{"a":99}`), &wrong)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = b.Find(ctx, scope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.State))
	assert.Equal(t, r0, got.Revision)

	ok, err = b.SaveIfRevision(ctx, record("t1", "p1", model.NewRevision(), `{"a":2}`), &r0)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = b.Find(ctx, scope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got.State))
	assert.NotEqual(t, r0, got.Revision)
}

func testCreateOnce(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	wins := 0
	for i := 0; i < 3; i++ {
		ok, err := b.SaveIfRevision(ctx, record("t1", "once", model.NewRevision(), fmt.Sprintf(`{"n":%d}`, i)), nil)
		require.NoError(t, err)
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	got, err := b.Find(ctx, model.ProjectScope{TenantID: "t1", ProjectID: "once"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":0}`, string(got.State))
}

func testRoundTrip(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	states := map[string]string{
		"empty":   `{}`,
		"unicode": `{"name":"模型 ✓","note":"naïve café"}`,
		"nested":  `{"session":{"objects":[{"id":1,"tags":["a","b"]},{"id":2,"tags":[]}]},"version":2}`,
		"scalars": `{"f":1.5,"t":true,"n":null,"s":""}`,
	}
	for name, state := range states {
		t.Run(name, func(t *testing.T) {
			rev := model.NewRevision()
			require.NoError(t, b.Save(ctx, record("rt", name, rev, state)))

			got, err := b.Find(ctx, model.ProjectScope{TenantID: "rt", ProjectID: name})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, model.ProjectScope{TenantID: "rt", ProjectID: name}, got.Scope)
			assert.Equal(t, rev, got.Revision)
			assert.JSONEq(t, state, string(got.State))
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func testConcurrentCAS(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	ok, err := b.SaveIfRevision(ctx, record("t1", "race", model.NewRevision(), `{"w":-1}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
	base, err := b.Find(ctx, model.ProjectScope{TenantID: "t1", ProjectID: "race"})
	require.NoError(t, err)

	const writers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner = -1
		wins   int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expected := base.Revision
			ok, err := b.SaveIfRevision(ctx, record("t1", "race", model.NewRevision(), fmt.Sprintf(`{"w":%d}`, i)), &expected)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				winner = i
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	got, err := b.Find(ctx, model.ProjectScope{TenantID: "t1", ProjectID: "race"})
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"w":%d}`, winner), string(got.State))
}

func testListByScopePrefix(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	for _, r := range []model.ProjectRecord{
		record("t1", "p1", "", `{}`),
		record("t1", "p10", "", `{}`),
		record("t1", "p2", "", `{}`),
		record("t1", "P1x", "", `{}`),
		record("t2", "p1", "", `{}`),
	} {
		require.NoError(t, b.Save(ctx, r))
	}

	got, err := b.ListByScopePrefix(ctx, model.ProjectScope{TenantID: "t1", ProjectID: "p1"})
	require.NoError(t, err)
	var ids []string
	for _, r := range got {
		assert.Equal(t, "t1", r.Scope.TenantID)
		ids = append(ids, r.Scope.ProjectID)
	}
	assert.Equal(t, []string{"p1", "p10"}, ids)

	got, err = b.ListByScopePrefix(ctx, model.ProjectScope{TenantID: "t1", ProjectID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSaveAndRemove(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	scope := model.ProjectScope{TenantID: "t1", ProjectID: "doc"}

	require.NoError(t, b.Save(ctx, record("t1", "doc", "", `{"v":1}`)))
	first, err := b.Find(ctx, scope)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Revision, "save mints a revision when none is given")

	require.NoError(t, b.Save(ctx, record("t1", "doc", "", `{"v":2}`)))
	second, err := b.Find(ctx, scope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(second.State))
	assert.NotEqual(t, first.Revision, second.Revision)

	require.NoError(t, b.Remove(ctx, scope))
	gone, err := b.Find(ctx, scope)
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, b.Remove(ctx, scope), "removing twice is not an error")
}

func testInvalidScope(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	_, err := b.Find(ctx, model.ProjectScope{TenantID: "t1"})
	assert.ErrorIs(t, err, repo.ErrInvalidScope)

	_, err = b.SaveIfRevision(ctx, record("", "p", model.NewRevision(), `{}`), nil)
	assert.ErrorIs(t, err, repo.ErrInvalidScope)

	assert.ErrorIs(t, b.Save(ctx, record(" ", "p", "", `{}`)), repo.ErrInvalidScope)
}

// day0 is a fixed, second-aligned instant so timestamps survive every backend's precision.
var day0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
