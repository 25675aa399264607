// Package importer loads build request dumps into the database
package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"

	"github.com/aparcar/buildboard/internal/logging"
	"github.com/aparcar/buildboard/internal/models"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Store receives imported build requests
type Store interface {
	InsertBuildRequests(ctx context.Context, reqs []*models.BuildRequest) error
}

// Result summarizes one dump
type Result struct {
	Requests []*models.BuildRequest
	Skipped  int
}

// Importer reads build request dumps from files or URLs
type Importer struct {
	client *retryablehttp.Client
}

// New creates an importer whose downloads give up after timeout
func New(timeout time.Duration, retryMax int) *Importer {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	return &Importer{client: client}
}

// FromURL downloads and parses a dump
func (im *Importer) FromURL(ctx context.Context, url string) (*Result, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	return Parse(resp.Body)
}

// FromFile parses a dump stored on disk
func (im *Importer) FromFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Load reads the dump at source, a URL or a file path, and stores it
func (im *Importer) Load(ctx context.Context, store Store, source string) (*Result, error) {
	var (
		res *Result
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		res, err = im.FromURL(ctx, source)
	} else {
		res, err = im.FromFile(source)
	}
	if err != nil {
		return nil, err
	}

	if err := store.InsertBuildRequests(ctx, res.Requests); err != nil {
		return nil, fmt.Errorf("failed to store build requests: %w", err)
	}

	logging.Log.WithField("source", source).
		WithField("imported", len(res.Requests)).
		WithField("skipped", res.Skipped).
		Info("imported build requests")
	return res, nil
}

// Parse reads a dump, decompressing zstd or gzip input
func Parse(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	var body io.Reader = br
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		body = dec
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}
	return ParseBuilds(data)
}

// ParseBuilds extracts build requests from a JSON dump. The dump is either
// an object with a builds array or the array itself
func ParseBuilds(data []byte) (*Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("dump is not valid JSON")
	}

	builds := gjson.GetBytes(data, "builds")
	if !builds.Exists() {
		builds = gjson.ParseBytes(data)
	}
	if !builds.IsArray() {
		return nil, fmt.Errorf("dump has no builds array")
	}

	res := &Result{}
	builds.ForEach(func(_, b gjson.Result) bool {
		req, ok := parseBuild(b)
		if !ok {
			res.Skipped++
			logging.Log.WithField("build", truncate(b.Raw, 120)).Debug("skipping build without id or buildername")
			return true
		}
		res.Requests = append(res.Requests, req)
		return true
	})
	return res, nil
}

func parseBuild(b gjson.Result) (*models.BuildRequest, bool) {
	id := first(b, "id", "requestid", "request_ids.0").Int()
	builder := first(b, "buildername", "properties.buildername").String()
	if id == 0 || builder == "" {
		return nil, false
	}

	start := first(b, "start_time", "starttime").Int()
	req := &models.BuildRequest{
		ID:          id,
		Branch:      first(b, "branch", "properties.branch").String(),
		BuilderName: builder,
		Revision:    first(b, "revision", "properties.revision").String(),
		Status:      models.JobStatus(b.Get("status").String()),
		SubmittedAt: first(b, "submitted_at", "requesttime").Int(),
		StartTime:   start,
		CompleteAt:  first(b, "complete_at", "endtime").Int(),
	}
	if req.SubmittedAt == 0 {
		req.SubmittedAt = start
	}

	switch result := b.Get("result"); result.Type {
	case gjson.Number:
		req.Result = models.ResultFromCode(result.Int())
	case gjson.String:
		req.Result = models.Result(result.Str)
	}

	req.Normalize()
	return req, true
}

// first returns the first of paths present in b
func first(b gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := b.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
