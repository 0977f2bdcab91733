package activelearning

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

// fakeSet is one subject set held by the fake platform.
type fakeSet struct {
	id          int64
	displayName string
	projectID   int64
	subjects    map[int64]bool
}

// fakePlatform is an in-memory Panoptes lookalike covering the endpoints
// the engine touches. Single workflow, single project.
type fakePlatform struct {
	mu sync.Mutex

	nextID     int64
	workflowID int64
	sets       map[int64]*fakeSet
	linked     map[int64]bool
	config     map[string]any

	addCalls    int
	removeCalls int
}

func newFakePlatform(t *testing.T, workflowID int64) (*fakePlatform, *panoptes.Client) {
	t.Helper()
	fp := &fakePlatform{
		nextID:     1000,
		workflowID: workflowID,
		sets:       make(map[int64]*fakeSet),
		linked:     make(map[int64]bool),
		config:     make(map[string]any),
	}

	r := mux.NewRouter()
	r.HandleFunc("/subject_sets", fp.handleListSets).Methods("GET")
	r.HandleFunc("/subject_sets", fp.handleCreateSet).Methods("POST")
	r.HandleFunc("/subject_sets/{id}", fp.handleFindSet).Methods("GET")
	r.HandleFunc("/subject_sets/{id}/subjects", fp.handleAddSubjects).Methods("POST")
	r.HandleFunc("/subject_sets/{id}/subjects", fp.handleRemoveSubjects).Methods("DELETE")
	r.HandleFunc("/workflows/{id}", fp.handleFindWorkflow).Methods("GET")
	r.HandleFunc("/workflows/{id}/subject_sets", fp.handleLinkSets).Methods("POST")
	r.HandleFunc("/workflows/{id}/subject_sets", fp.handleUnlinkSets).Methods("DELETE")
	r.HandleFunc("/workflows/{id}/configuration", fp.handleSaveConfiguration).Methods("PUT")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return fp, panoptes.New(srv.URL, "", "", nil)
}

// addSet seeds a subject set, optionally linked to the workflow.
func (fp *fakePlatform) addSet(id int64, displayName string, projectID int64, linked bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.sets[id] = &fakeSet{
		id:          id,
		displayName: displayName,
		projectID:   projectID,
		subjects:    make(map[int64]bool),
	}
	if linked {
		fp.linked[id] = true
	}
}

func (fp *fakePlatform) setJSON(set *fakeSet) map[string]any {
	var workflows []int64
	if fp.linked[set.id] {
		workflows = append(workflows, fp.workflowID)
	}
	return map[string]any{
		"id":           set.id,
		"display_name": set.displayName,
		"project_id":   set.projectID,
		"workflow_ids": workflows,
	}
}

// membership returns the subject ids currently in the set, sorted order
// not guaranteed.
func (fp *fakePlatform) membership(setID int64) []int64 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	set := fp.sets[setID]
	if set == nil {
		return nil
	}
	ids := make([]int64, 0, len(set.subjects))
	for id := range set.subjects {
		ids = append(ids, id)
	}
	return ids
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (fp *fakePlatform) handleFindSet(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	set := fp.sets[pathID(r)]
	if set == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, fp.setJSON(set))
}

func (fp *fakePlatform) handleListSets(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	projectFilter := r.URL.Query().Get("project_id")

	var sets []map[string]any
	for _, set := range fp.sets {
		if projectFilter != "" && strconv.FormatInt(set.projectID, 10) != projectFilter {
			continue
		}
		sets = append(sets, fp.setJSON(set))
	}
	writeJSON(w, map[string]any{
		"subject_sets": sets,
		"meta":         map[string]any{"count": len(sets), "next_page": nil},
	})
}

func (fp *fakePlatform) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"display_name"`
		ProjectID   int64  `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.nextID++
	set := &fakeSet{
		id:          fp.nextID,
		displayName: body.DisplayName,
		projectID:   body.ProjectID,
		subjects:    make(map[int64]bool),
	}
	fp.sets[set.id] = set
	writeJSON(w, fp.setJSON(set))
}

func decodeIDs(r *http.Request, key string) ([]int64, error) {
	var body map[string][]int64
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body[key], nil
}

func (fp *fakePlatform) handleAddSubjects(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r, "subject_ids")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	set := fp.sets[pathID(r)]
	if set == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	for _, id := range ids {
		set.subjects[id] = true
	}
	fp.addCalls++
	w.WriteHeader(http.StatusOK)
}

func (fp *fakePlatform) handleRemoveSubjects(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r, "subject_ids")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	set := fp.sets[pathID(r)]
	if set == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	for _, id := range ids {
		delete(set.subjects, id)
	}
	fp.removeCalls++
	w.WriteHeader(http.StatusOK)
}

func (fp *fakePlatform) handleFindWorkflow(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if pathID(r) != fp.workflowID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var linked []int64
	for id := range fp.linked {
		linked = append(linked, id)
	}
	writeJSON(w, map[string]any{
		"id":              fp.workflowID,
		"display_name":    "Sonification Review",
		"subject_set_ids": linked,
		"configuration":   fp.config,
	})
}

func (fp *fakePlatform) handleLinkSets(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r, "subject_set_ids")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for _, id := range ids {
		if fp.linked[id] {
			http.Error(w, "subject set already linked", http.StatusConflict)
			return
		}
	}
	for _, id := range ids {
		fp.linked[id] = true
	}
	w.WriteHeader(http.StatusOK)
}

func (fp *fakePlatform) handleUnlinkSets(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r, "subject_set_ids")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for _, id := range ids {
		delete(fp.linked, id)
	}
	w.WriteHeader(http.StatusOK)
}

func (fp *fakePlatform) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.config = cfg
	w.WriteHeader(http.StatusOK)
}

const (
	testProjectID  = int64(7)
	testWorkflowID = int64(55)
)

// newTestEngine wires a fresh mirror database and fake platform.
func newTestEngine(t *testing.T) (*Engine, *storage.Store, *fakePlatform) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fp, client := newFakePlatform(t, testWorkflowID)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, client, logger, nil), store, fp
}

// seedPrioritySet registers a priority set both remotely and in the
// mirror.
func seedPrioritySet(t *testing.T, store *storage.Store, fp *fakePlatform, zooniverseID int64, rank int) {
	t.Helper()
	name := PrioritySetName(testWorkflowID, rank)
	fp.addSet(zooniverseID, name, testProjectID, true)
	wf := testWorkflowID
	require.NoError(t, store.UpsertSubjectSet(storage.SubjectSetRecord{
		ZooniverseID: zooniverseID,
		ProjectID:    testProjectID,
		WorkflowID:   &wf,
		Priority:     &rank,
		DisplayName:  name,
	}))
}

// seedSubject registers a sonification with the given confidence and a
// mirrored subject pointing at it. A nil confidence stays unscored.
func seedSubject(t *testing.T, store *storage.Store, zooniverseID int64, name string, confidence *float64) {
	t.Helper()
	ref, err := store.AddContent(storage.KindSonification, name, "")
	require.NoError(t, err)
	if confidence != nil {
		require.NoError(t, store.SetMachineConfidence(ref, *confidence))
	}
	require.NoError(t, store.UpsertSubject(storage.SubjectRecord{
		ZooniverseID: zooniverseID,
		Content:      ref,
	}))
}

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }
