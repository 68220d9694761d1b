// Package storetest holds the behaviour every RecordStore backend must share.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_network/internal/repository"
)

// Run exercises store against the RecordStore contract. Each subtest uses its
// own collection so a single store instance can be shared.
func Run(t *testing.T, store repository.RecordStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create assigns version one and rejects duplicates", func(t *testing.T) {
		rec, err := store.Create(ctx, "c_create", repository.Record{ID: "a", Body: json.RawMessage(`{"id":"a","city":"Pune"}`)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)

		_, err = store.Create(ctx, "c_create", repository.Record{ID: "a", Body: json.RawMessage(`{"id":"a"}`)})
		assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
	})

	t.Run("get unknown id is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "c_missing", "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list keeps creation order", func(t *testing.T) {
		for _, id := range []string{"z", "m", "a"} {
			_, err := store.Create(ctx, "c_order", repository.Record{ID: id, Body: json.RawMessage(`{"id":"` + id + `"}`)})
			require.NoError(t, err)
		}
		recs, err := store.List(ctx, "c_order")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "z", recs[0].ID)
		assert.Equal(t, "m", recs[1].ID)
		assert.Equal(t, "a", recs[2].ID)
	})

	t.Run("replace is compare and swap", func(t *testing.T) {
		_, err := store.Create(ctx, "c_replace", repository.Record{ID: "r", Body: json.RawMessage(`{"id":"r","n":1}`)})
		require.NoError(t, err)

		rec, err := store.Replace(ctx, "c_replace", "r", 1, json.RawMessage(`{"id":"r","n":2}`))
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)

		_, err = store.Replace(ctx, "c_replace", "r", 1, json.RawMessage(`{"id":"r","n":3}`))
		assert.ErrorIs(t, err, repository.ErrStaleWrite)

		got, err := store.Get(ctx, "c_replace", "r")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.JSONEq(t, `{"id":"r","n":2}`, stripVersion(t, got.Body))

		_, err = store.Replace(ctx, "c_replace", "ghost", 1, json.RawMessage(`{}`))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("patch merges fields and checks version", func(t *testing.T) {
		_, err := store.Create(ctx, "c_patch", repository.Record{ID: "p", Body: json.RawMessage(`{"id":"p","status":"requested","payment":"Pending"}`)})
		require.NoError(t, err)

		rec, err := store.Patch(ctx, "c_patch", "p", 1, map[string]any{"status": "approved"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)
		assert.JSONEq(t, `{"id":"p","status":"approved","payment":"Pending"}`, stripVersion(t, rec.Body))

		_, err = store.Patch(ctx, "c_patch", "p", 1, map[string]any{"payment": "Success"})
		assert.ErrorIs(t, err, repository.ErrStaleWrite)
	})

	t.Run("find matches a top level string field", func(t *testing.T) {
		for id, station := range map[string]string{"b1": "MG Road", "b2": "FC Road", "b3": "MG Road"} {
			_, err := store.Create(ctx, "c_find", repository.Record{ID: id, Body: json.RawMessage(`{"id":"` + id + `","parkingStation":"` + station + `"}`)})
			require.NoError(t, err)
		}
		recs, err := store.Find(ctx, "c_find", "parkingStation", "MG Road")
		require.NoError(t, err)
		ids := make([]string, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		assert.ElementsMatch(t, []string{"b1", "b3"}, ids)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		_, err := store.Create(ctx, "c_delete", repository.Record{ID: "d", Body: json.RawMessage(`{"id":"d"}`)})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "c_delete", "d"))
		_, err = store.Get(ctx, "c_delete", "d")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "c_delete", "d"), repository.ErrNotFound)
	})
}

// stripVersion drops a "version" key some backends keep inside the body.
func stripVersion(t *testing.T, body json.RawMessage) string {
	t.Helper()
	doc := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &doc))
	delete(doc, "version")
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(out)
}
