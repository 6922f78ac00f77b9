package mediastore

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	mod, err := NewModule(zap.NewNop(), nil, Config{
		NodeID:     "wl:library:test",
		Root:       t.TempDir(),
		HTTPListen: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return mod
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func seedRecord(t *testing.T, mod *Module, record wl.MediaRecord) {
	t.Helper()
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	if err := mod.storage.SaveRecord(record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func ackReply() wl.ReplyEnvelope {
	return wl.ReplyEnvelope{Type: "ack", OK: true}
}

func TestDispatchRequiresIdentity(t *testing.T) {
	mod := newTestModule(t)
	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.query", Body: mustJSON(t, wl.MediaQueryBody{})}
	reply := mod.dispatch(cmd)
	if reply.OK || reply.Err == nil || reply.Err.Code != wl.CodeUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED, got %+v", reply)
	}
}

func TestMediaQueryFiltersAndOrders(t *testing.T) {
	mod := newTestModule(t)
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "Old Song.mp3", Type: wl.MediaAudio, CreatedAt: 100})
	seedRecord(t, mod, wl.MediaRecord{ID: "m2", Name: "New Song.mp3", Type: wl.MediaAudio, CreatedAt: 200})
	seedRecord(t, mod, wl.MediaRecord{ID: "m3", Name: "Clip.mp4", Type: wl.MediaVideo, CreatedAt: 300})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.query", From: "alice", Body: mustJSON(t, wl.MediaQueryBody{Type: wl.MediaAudio})}
	reply := mod.mediaQuery(cmd, ackReply())
	var body wl.MediaQueryReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 2 || body.Records[0].ID != "m2" || body.Records[1].ID != "m1" {
		t.Fatalf("expected newest-first audio records, got %+v", body.Records)
	}

	cmd.Body = mustJSON(t, wl.MediaQueryBody{NameContains: "new"})
	reply = mod.mediaQuery(cmd, ackReply())
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].ID != "m2" {
		t.Fatalf("expected case-insensitive name filter, got %+v", body.Records)
	}
}

func TestMediaResolvePreservesOrderAndOmitsUnknown(t *testing.T) {
	mod := newTestModule(t)
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "One.mp3", Type: wl.MediaAudio})
	seedRecord(t, mod, wl.MediaRecord{ID: "m2", Name: "Two.mp3", Type: wl.MediaAudio})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.resolve", From: "alice", Body: mustJSON(t, wl.MediaResolveBody{IDs: []string{"m2", "missing", "m1"}})}
	reply := mod.mediaResolve(cmd, ackReply())
	var body wl.MediaResolveReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 2 || body.Records[0].ID != "m2" || body.Records[1].ID != "m1" {
		t.Fatalf("resolve order wrong: %+v", body.Records)
	}
}

func TestMediaDeleteRemovesBlobThenRow(t *testing.T) {
	mod := newTestModule(t)
	if _, err := mod.storage.SaveBlob("song.mp3", strings.NewReader("data")); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	mod.baseURL = "http://127.0.0.1:9999"
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "song.mp3", Type: wl.MediaAudio, URL: mod.mediaURL("song.mp3")})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.delete", From: "alice", Body: mustJSON(t, wl.MediaDeleteBody{ID: "m1"})}
	reply := mod.mediaDelete(cmd, ackReply())
	if !reply.OK {
		t.Fatalf("delete failed: %+v", reply.Err)
	}
	if _, ok, _ := mod.storage.GetRecord("m1"); ok {
		t.Fatalf("record not deleted")
	}
	names, _ := mod.storage.ListBlobNames()
	if len(names) != 0 {
		t.Fatalf("blob not deleted: %v", names)
	}
}

func TestMediaDeleteUnknownID(t *testing.T) {
	mod := newTestModule(t)
	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.delete", From: "alice", Body: mustJSON(t, wl.MediaDeleteBody{ID: "nope"})}
	reply := mod.mediaDelete(cmd, ackReply())
	if reply.OK || reply.Err.Code != wl.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", reply)
	}
}

func TestMediaSearchMergesBlobsAndDedupesByURL(t *testing.T) {
	mod := newTestModule(t)
	mod.baseURL = "http://127.0.0.1:9999"
	if _, err := mod.storage.SaveBlob("drift.mp3", strings.NewReader("x")); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	if _, err := mod.storage.SaveBlob("orphan drift.mp3", strings.NewReader("x")); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "drift.mp3", Type: wl.MediaAudio, URL: mod.mediaURL("drift.mp3")})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "drift"})}
	reply := mod.mediaSearch(cmd, ackReply())
	var body wl.MediaSearchReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 2 {
		t.Fatalf("expected 2 results, got %+v", body.Records)
	}
	// The row wins the shared URL; the orphan blob appears once.
	if body.Records[0].ID != "m1" {
		t.Fatalf("expected row first, got %+v", body.Records[0])
	}
	if body.Records[1].Name != "orphan drift.mp3" || body.Records[1].ID == "" {
		t.Fatalf("expected orphan blob entry with synthetic id, got %+v", body.Records[1])
	}
}

func TestMediaSearchMatchesNameOnly(t *testing.T) {
	mod := newTestModule(t)
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "sunrise.mp3", Artist: "Driftwood", Type: wl.MediaAudio, URL: mod.mediaURL("sunrise.mp3")})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "drift"})}
	reply := mod.mediaSearch(cmd, ackReply())
	var body wl.MediaSearchReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 0 {
		t.Fatalf("artist match must not count, got %+v", body.Records)
	}
}

func TestMediaSearchBlobIDsAreStableAndDistinct(t *testing.T) {
	mod := newTestModule(t)
	mod.baseURL = "http://127.0.0.1:9999"
	for _, name := range []string{"drift one.mp3", "drift two.mp3"} {
		if _, err := mod.storage.SaveBlob(name, strings.NewReader("x")); err != nil {
			t.Fatalf("save blob: %v", err)
		}
	}

	search := func() []wl.MediaRecord {
		cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "drift"})}
		reply := mod.mediaSearch(cmd, ackReply())
		var body wl.MediaSearchReply
		if err := json.Unmarshal(reply.Body, &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return body.Records
	}

	first := search()
	if len(first) != 2 {
		t.Fatalf("expected 2 results, got %+v", first)
	}
	if first[0].ID == "" || first[1].ID == "" || first[0].ID == first[1].ID {
		t.Fatalf("blob ids must be distinct and non-empty, got %q and %q", first[0].ID, first[1].ID)
	}
	second := search()
	if second[0].ID != first[0].ID || second[1].ID != first[1].ID {
		t.Fatalf("blob ids must be stable across searches")
	}
}

func TestMediaSearchEmptyQueryReturnsNothing(t *testing.T) {
	mod := newTestModule(t)
	seedRecord(t, mod, wl.MediaRecord{ID: "m1", Name: "anything.mp3", Type: wl.MediaAudio})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "   "})}
	reply := mod.mediaSearch(cmd, ackReply())
	var body wl.MediaSearchReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Records) != 0 {
		t.Fatalf("expected empty result, got %+v", body.Records)
	}
	queries, _ := mod.storage.RecentSearches("alice")
	if len(queries) != 0 {
		t.Fatalf("blank query must not enter history: %v", queries)
	}
}

func TestRecentSearchesKeepNewestFive(t *testing.T) {
	mod := newTestModule(t)
	for _, q := range []string{"a", "b", "c", "d", "e", "f"} {
		cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: q})}
		mod.mediaSearch(cmd, ackReply())
	}
	// Repeating a query moves it to the front without duplicating it.
	cmd := wl.CommandEnvelope{ID: "c2", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "d"})}
	mod.mediaSearch(cmd, ackReply())

	reply := mod.searchRecent(wl.CommandEnvelope{ID: "c3", Type: "search.recent", From: "alice"}, ackReply())
	var body wl.RecentSearchesReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"d", "f", "e", "c", "b"}
	if len(body.Queries) != len(want) {
		t.Fatalf("queries = %v", body.Queries)
	}
	for i := range want {
		if body.Queries[i] != want[i] {
			t.Fatalf("queries = %v, want %v", body.Queries, want)
		}
	}

	// Histories are per user.
	reply = mod.searchRecent(wl.CommandEnvelope{ID: "c4", Type: "search.recent", From: "bob"}, ackReply())
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Queries) != 0 {
		t.Fatalf("expected empty history for bob, got %v", body.Queries)
	}
}

func TestSearchClear(t *testing.T) {
	mod := newTestModule(t)
	cmd := wl.CommandEnvelope{ID: "c1", Type: "media.search", From: "alice", Body: mustJSON(t, wl.MediaSearchBody{Query: "x"})}
	mod.mediaSearch(cmd, ackReply())

	reply := mod.searchClear(wl.CommandEnvelope{ID: "c2", Type: "search.clear", From: "alice"}, ackReply())
	if !reply.OK {
		t.Fatalf("clear failed: %+v", reply.Err)
	}
	queries, _ := mod.storage.RecentSearches("alice")
	if len(queries) != 0 {
		t.Fatalf("history not cleared: %v", queries)
	}
}

func TestUploadCreatesRecordAndServesBlob(t *testing.T) {
	mod := newTestModule(t)
	if err := mod.startHTTPServer(); err != nil {
		t.Fatalf("http server: %v", err)
	}
	defer mod.shutdownHTTPServer()

	record := uploadFile(t, mod, "track.mp3", "audio/mpeg", []byte("not really audio"))
	if record.Type != wl.MediaAudio || record.Owner != "alice" || record.Size != int64(len("not really audio")) {
		t.Fatalf("unexpected record %+v", record)
	}

	resp, err := http.Get(record.URL)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "not really audio" {
		t.Fatalf("blob content mismatch: %q", data)
	}
}

func TestUploadSameFilenameReusesRow(t *testing.T) {
	mod := newTestModule(t)
	if err := mod.startHTTPServer(); err != nil {
		t.Fatalf("http server: %v", err)
	}
	defer mod.shutdownHTTPServer()

	first := uploadFile(t, mod, "track.mp3", "audio/mpeg", []byte("v1"))
	second := uploadFile(t, mod, "track.mp3", "audio/mpeg", []byte("version two"))
	if first.ID != second.ID {
		t.Fatalf("expected row reuse, got %s and %s", first.ID, second.ID)
	}
	records, err := mod.storage.ListRecords()
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Size != int64(len("version two")) {
		t.Fatalf("expected single updated row, got %+v", records)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	mod := newTestModule(t)
	req := multipartRequest(t, "notes.txt", "text/plain", []byte("hello"))
	req.Header.Set("X-Wavelength-User", "alice")
	rec := httptest.NewRecorder()
	mod.handleUpload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadRequiresIdentity(t *testing.T) {
	mod := newTestModule(t)
	req := multipartRequest(t, "track.mp3", "audio/mpeg", []byte("x"))
	rec := httptest.NewRecorder()
	mod.handleUpload(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func uploadFile(t *testing.T, mod *Module, filename, contentType string, data []byte) wl.MediaRecord {
	t.Helper()
	req := multipartRequest(t, filename, contentType, data)
	req.Header.Set("X-Wavelength-User", "alice")
	rec := httptest.NewRecorder()
	mod.handleUpload(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var record wl.MediaRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return record
}

func multipartRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
