package gcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": map[string]any{"code": code, "message": msg}})
}

// readMultipart returns the metadata and media parts of a multipart upload.
func readMultipart(t *testing.T, r *http.Request) ([]byte, []byte) {
	t.Helper()
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		t.Errorf("parse content type: %v", err)
		return nil, nil
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	var parts [][]byte
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Errorf("next part: %v", err)
			return nil, nil
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, data)
	}
	if len(parts) != 2 {
		t.Errorf("expected 2 parts, got %d", len(parts))
		return nil, nil
	}
	return parts[0], parts[1]
}

// ==================== Fake Cloud Storage ====================

type fakeGCS struct {
	t       *testing.T
	mu      sync.Mutex
	srv     *httptest.Server
	objects map[string][]byte
}

func newFakeGCS(t *testing.T) *fakeGCS {
	f := &fakeGCS{t: t, objects: make(map[string][]byte)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGCS) config() Config {
	return Config{
		Bucket:          "bkt",
		Prefix:          "raw/",
		StorageEndpoint: f.srv.URL + "/storage/v1/",
		HTTPClient:      f.srv.Client(),
	}
}

func (f *fakeGCS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/b/bkt/o")
	if !ok {
		writeAPIError(w, http.StatusNotFound, "bucket not found")
		return
	}

	switch {
	case r.Method == http.MethodPost:
		meta, media := readMultipart(f.t, r)
		var obj struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(meta, &obj)
		f.objects[obj.Name] = media
		writeJSON(w, http.StatusOK, map[string]any{"bucket": "bkt", "name": obj.Name})

	case r.Method == http.MethodGet && rest == "":
		prefix := r.URL.Query().Get("prefix")
		delimiter := r.URL.Query().Get("delimiter")
		var names []string
		dirs := map[string]bool{}
		for name := range f.objects {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			if delimiter != "" {
				if i := strings.Index(name[len(prefix):], delimiter); i >= 0 {
					dirs[name[:len(prefix)+i+len(delimiter)]] = true
					continue
				}
			}
			names = append(names, name)
		}
		sort.Strings(names)
		items := make([]map[string]string, 0, len(names))
		for _, n := range names {
			items = append(items, map[string]string{"name": n})
		}
		prefixes := make([]string, 0, len(dirs))
		for d := range dirs {
			prefixes = append(prefixes, d)
		}
		sort.Strings(prefixes)
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "prefixes": prefixes})

	case r.Method == http.MethodGet:
		name := strings.TrimPrefix(rest, "/")
		data, ok := f.objects[name]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "No such object: bkt/"+name)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

// ==================== Fake BigQuery ====================

type stagedRecord struct {
	domain.Record
	StagedSeq int64 `json:"staged_seq"`
}

type fakeBigQuery struct {
	t          *testing.T
	mu         sync.Mutex
	srv        *httptest.Server
	tables     map[string]bool
	datasets   map[string]string
	staging    []stagedRecord
	target     map[string]domain.Record
	loadJobs   int
	queries    []string
	pendingJob bool
	failMerge  bool
}

func newFakeBigQuery(t *testing.T) *fakeBigQuery {
	f := &fakeBigQuery{
		t:        t,
		tables:   make(map[string]bool),
		datasets: map[string]string{"vuln": "US"},
		target:   make(map[string]domain.Record),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBigQuery) config() Config {
	return Config{
		Project:          "proj",
		Dataset:          "vuln",
		BigQueryEndpoint: f.srv.URL + "/bigquery/v2/",
		HTTPClient:       f.srv.Client(),
	}
}

func (f *fakeBigQuery) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/projects/proj/datasets/vuln") && r.Method == http.MethodGet:
		if _, ok := f.datasets["vuln"]; !ok {
			writeAPIError(w, http.StatusNotFound, "Not found: Dataset proj:vuln")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "proj:vuln"})

	case strings.HasSuffix(path, "/projects/proj/datasets") && r.Method == http.MethodPost:
		var ds struct {
			DatasetReference struct {
				DatasetID string `json:"datasetId"`
			} `json:"datasetReference"`
			Location string `json:"location"`
		}
		_ = json.NewDecoder(r.Body).Decode(&ds)
		f.datasets[ds.DatasetReference.DatasetID] = ds.Location
		writeJSON(w, http.StatusOK, ds)

	case strings.Contains(path, "/datasets/vuln/tables/") && r.Method == http.MethodGet:
		table := path[strings.LastIndex(path, "/")+1:]
		if !f.tables[table] {
			writeAPIError(w, http.StatusNotFound, "Not found: Table proj:vuln."+table)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": table})

	case strings.HasSuffix(path, "/datasets/vuln/tables") && r.Method == http.MethodPost:
		var table struct {
			TableReference struct {
				TableID string `json:"tableId"`
			} `json:"tableReference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&table)
		f.tables[table.TableReference.TableID] = true
		writeJSON(w, http.StatusOK, table)

	case strings.HasSuffix(path, "/projects/proj/jobs") && r.Method == http.MethodPost:
		_, media := readMultipart(f.t, r)
		sc := bufio.NewScanner(strings.NewReader(string(media)))
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			var row stagedRecord
			if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
				f.t.Errorf("bad ndjson line: %v", err)
				continue
			}
			f.staging = append(f.staging, row)
		}
		f.loadJobs++
		id := fmt.Sprintf("load-%d", f.loadJobs)
		state := "DONE"
		if f.pendingJob {
			state = "RUNNING"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobReference": map[string]string{"projectId": "proj", "jobId": id},
			"status":       map[string]string{"state": state},
		})

	case strings.Contains(path, "/projects/proj/jobs/") && r.Method == http.MethodGet:
		id := path[strings.LastIndex(path, "/")+1:]
		writeJSON(w, http.StatusOK, map[string]any{
			"jobReference": map[string]string{"projectId": "proj", "jobId": id},
			"status":       map[string]string{"state": "DONE"},
		})

	case strings.HasSuffix(path, "/projects/proj/queries"):
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.queries = append(f.queries, req.Query)
		f.query(w, req.Query)

	default:
		writeAPIError(w, http.StatusNotFound, path)
	}
}

func (f *fakeBigQuery) query(w http.ResponseWriter, q string) {
	switch {
	case strings.HasPrefix(q, "SELECT COUNT(*)"):
		ids := map[string]bool{}
		for _, r := range f.staging {
			ids[r.ID] = true
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobComplete": true,
			"rows": []map[string]any{{"f": []map[string]any{
				{"v": fmt.Sprint(len(f.staging))},
				{"v": fmt.Sprint(len(ids))},
			}}},
		})

	case strings.HasPrefix(q, "MERGE"):
		if f.failMerge {
			writeAPIError(w, http.StatusBadRequest, "Query error: bad merge")
			return
		}
		sort.SliceStable(f.staging, func(i, j int) bool { return f.staging[i].StagedSeq < f.staging[j].StagedSeq })
		records := make([]domain.Record, len(f.staging))
		for i, r := range f.staging {
			records[i] = r.Record
		}
		stats := domain.Reconcile(f.target, records)
		writeJSON(w, http.StatusOK, map[string]any{
			"jobComplete": true,
			"dmlStats": map[string]string{
				"insertedRowCount": fmt.Sprint(stats.Inserted),
				"updatedRowCount":  fmt.Sprint(stats.Updated),
			},
		})

	case strings.HasPrefix(q, "TRUNCATE"):
		f.staging = nil
		writeJSON(w, http.StatusOK, map[string]any{"jobComplete": true})

	default:
		writeAPIError(w, http.StatusBadRequest, "unexpected query")
	}
}
