package zooniverse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

func newTestSyncer(t *testing.T, handler http.Handler) (*Syncer, *storage.Store) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := panoptes.New(srv.URL, "", "", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncer(store, client, logger, nil), store
}

func TestSubjectSetPriority(t *testing.T) {
	cases := []struct {
		name string
		set  panoptes.SubjectSet
		want *int
	}{
		{
			"metadata wins",
			panoptes.SubjectSet{DisplayName: "Whatever #9", Metadata: map[string]string{"#priority": "2"}},
			intp(2),
		},
		{
			"trailing digits of display name",
			panoptes.SubjectSet{DisplayName: "WF42 Sonification Priority #3"},
			intp(3),
		},
		{
			"no rank anywhere",
			panoptes.SubjectSet{DisplayName: "Retired Holding"},
			nil,
		},
		{
			"empty name",
			panoptes.SubjectSet{},
			nil,
		},
		{
			"non-numeric metadata falls through to name",
			panoptes.SubjectSet{DisplayName: "Set #7", Metadata: map[string]string{"#priority": "high"}},
			intp(7),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := subjectSetPriority(tc.set)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func intp(v int) *int { return &v }

func TestSyncSubjectSets(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subject_sets":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
                "subject_sets": [
                    {"id": 101, "display_name": "WF55 Sonification Priority #1", "project_id": 7, "workflow_ids": [55]},
                    {"id": 200, "display_name": "Retired Holding", "project_id": 7, "workflow_ids": []}
                ],
                "meta": {"count": 2, "next_page": null}
            }`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	syncer, store := newTestSyncer(t, handler)

	// Pre-seed a stale mirror row; its remote 404s, so it gets pruned.
	require.NoError(t, store.UpsertSubjectSet(storage.SubjectSetRecord{ZooniverseID: 999}))

	n, err := syncer.SyncSubjectSets(context.Background(), panoptes.ListFilter{ProjectID: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.SubjectSetByZooniverseID(999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ranked, err := store.SubjectSetByZooniverseID(101)
	require.NoError(t, err)
	require.NotNil(t, ranked.Priority)
	assert.Equal(t, 1, *ranked.Priority)
	require.NotNil(t, ranked.WorkflowID)
	assert.Equal(t, int64(55), *ranked.WorkflowID)

	unranked, err := store.SubjectSetByZooniverseID(200)
	require.NoError(t, err)
	assert.Nil(t, unranked.Priority)
	assert.Nil(t, unranked.WorkflowID)

	runs, err := store.RecentSyncRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "subject-sets", runs[0].Kind)
}

func TestSyncSubjectsResolvesContent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/subjects":
			fmt.Fprint(w, `{
                "subjects": [
                    {"id": 1, "subject_set_ids": [101], "metadata": {"name": "lc-known"}},
                    {"id": 2, "subject_set_ids": [], "metadata": {"name": "lc-unknown"}},
                    {"id": 3, "subject_set_ids": [], "metadata": {}},
                    {"id": 4, "subject_set_ids": [101], "metadata": {"name": "lc-retired"}}
                ],
                "meta": {"count": 4, "next_page": null}
            }`)
		case "/subjects/1/status", "/subjects/2/status":
			fmt.Fprint(w, `{"retired_at": null}`)
		case "/subjects/4/status":
			fmt.Fprint(w, `{"retired_at": "2026-02-03T04:05:06Z"}`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	syncer, store := newTestSyncer(t, handler)

	_, err := store.AddContent(storage.KindSonification, "lc-known", "")
	require.NoError(t, err)
	_, err = store.AddContent(storage.KindStamp, "lc-retired", "")
	require.NoError(t, err)

	n, err := syncer.SyncSubjects(context.Background(), panoptes.ListFilter{ProjectID: 7}, 55, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "subjects without local content are skipped")

	known, err := store.SubjectByZooniverseID(1)
	require.NoError(t, err)
	assert.Equal(t, storage.KindSonification, known.Content.Kind())
	require.NotNil(t, known.SubjectSetID)
	assert.Equal(t, int64(101), *known.SubjectSetID)
	assert.False(t, known.Retired)

	retired, err := store.SubjectByZooniverseID(4)
	require.NoError(t, err)
	assert.Equal(t, storage.KindStamp, retired.Content.Kind(), "stamp content resolves on the second lookup")
	assert.True(t, retired.Retired)

	_, err = store.SubjectByZooniverseID(2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.SubjectByZooniverseID(3)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncClassifications(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/workflows/55/reductions":
			fmt.Fprint(w, `{
                "reductions": [
                    {"id": 9001, "subject_id": 1, "answer": "planet", "reducer": "consensus"},
                    {"id": 9002, "subject_id": 42, "answer": "noise", "reducer": "consensus"}
                ],
                "meta": {"count": 2, "next_page": null}
            }`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	syncer, store := newTestSyncer(t, handler)

	ref, err := store.AddContent(storage.KindSonification, "lc-cls", "")
	require.NoError(t, err)
	require.NoError(t, store.UpsertSubject(storage.SubjectRecord{ZooniverseID: 1, Content: ref}))

	n, err := syncer.SyncClassifications(context.Background(), 55, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reductions for unmirrored subjects are skipped")

	rec, err := store.ClassificationByZooniverseID(9001)
	require.NoError(t, err)
	assert.Equal(t, "planet", rec.Answer)

	_, err = store.ClassificationByZooniverseID(9002)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncSubjectSetsSurfacesRemoteFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	syncer, store := newTestSyncer(t, handler)

	_, err := syncer.SyncSubjectSets(context.Background(), panoptes.ListFilter{ProjectID: 7})
	var apiErr *panoptes.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	runs, err := store.RecentSyncRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "maintenance")
}
