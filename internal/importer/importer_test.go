package importer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/aparcar/buildboard/internal/models"
)

const dump = `{"builds": [
	{"id": 1, "buildername": "Linux mozilla-central build", "branch": "mozilla-central",
	 "submitted_at": 100, "starttime": 110, "endtime": 400, "result": 0,
	 "properties": {"revision": "0123456789abcdef"}},
	{"requestid": 2, "properties": {"buildername": "Linux try build", "branch": "try"},
	 "starttime": 50, "result": "failure", "status": "running"},
	{"buildername": "no id"},
	{"id": 4}
]}`

func TestParseBuilds(t *testing.T) {
	res, err := ParseBuilds([]byte(dump))
	if err != nil {
		t.Fatalf("ParseBuilds: %v", err)
	}
	if len(res.Requests) != 2 || res.Skipped != 2 {
		t.Fatalf("parsed %d, skipped %d", len(res.Requests), res.Skipped)
	}

	first := res.Requests[0]
	if first.ID != 1 || first.Branch != "mozilla-central" || first.Result != models.ResultSuccess {
		t.Errorf("first = %+v", first)
	}
	if first.Revision != "0123456789ab" || first.Status != models.JobStatusComplete || first.RunTime() != 290 {
		t.Errorf("first = %+v run %d", first, first.RunTime())
	}

	second := res.Requests[1]
	if second.ID != 2 || second.BuilderName != "Linux try build" || second.Branch != "try" {
		t.Errorf("second = %+v", second)
	}
	if second.SubmittedAt != 50 || second.Status != models.JobStatusRunning || second.Result != models.ResultFailure {
		t.Errorf("second = %+v", second)
	}
}

func TestParseBuildsTopLevelArray(t *testing.T) {
	res, err := ParseBuilds([]byte(`[{"id": 3, "buildername": "x", "submitted_at": 1}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Requests) != 1 || res.Requests[0].Status != models.JobStatusPending {
		t.Errorf("requests = %+v", res.Requests)
	}
}

func TestParseBuildsInvalid(t *testing.T) {
	for _, in := range []string{`{"builds": `, `{"builds": 3}`, `"x"`} {
		if _, err := ParseBuilds([]byte(in)); err == nil {
			t.Errorf("ParseBuilds(%q) succeeded", in)
		}
	}
}

func compressed(t *testing.T, kind string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch kind {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write([]byte(dump))
		w.Close()
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(dump))
		w.Close()
	default:
		buf.WriteString(dump)
	}
	return buf.Bytes()
}

func TestParseCompressed(t *testing.T) {
	for _, kind := range []string{"plain", "gzip", "zstd"} {
		t.Run(kind, func(t *testing.T) {
			res, err := Parse(bytes.NewReader(compressed(t, kind)))
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Requests) != 2 {
				t.Errorf("parsed %d requests", len(res.Requests))
			}
		})
	}
}

type memStore struct {
	reqs []*models.BuildRequest
}

func (m *memStore) InsertBuildRequests(_ context.Context, reqs []*models.BuildRequest) error {
	m.reqs = append(m.reqs, reqs...)
	return nil
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.json.zst")
	if err := os.WriteFile(path, compressed(t, "zstd"), 0644); err != nil {
		t.Fatal(err)
	}

	store := &memStore{}
	res, err := New(time.Second, 0).Load(context.Background(), store, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.reqs) != 2 || res.Skipped != 2 {
		t.Errorf("stored %d, skipped %d", len(store.reqs), res.Skipped)
	}
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/builds.json.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(compressed(t, "gzip"))
	}))
	defer srv.Close()

	store := &memStore{}
	im := New(5*time.Second, 0)
	if _, err := im.Load(context.Background(), store, srv.URL+"/builds.json.gz"); err != nil {
		t.Fatal(err)
	}
	if len(store.reqs) != 2 {
		t.Errorf("stored %d requests", len(store.reqs))
	}

	if _, err := im.FromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}
