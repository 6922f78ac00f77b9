package mediastore

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wavelength-media/wavelength/internal/adapters/idgen"
	"github.com/wavelength-media/wavelength/internal/adapters/mqttserver"
	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

// Config configures the media store module.
type Config struct {
	NodeID     string
	TopicBase  string
	Name       string
	Root       string
	HTTPListen string
}

// Module stores uploaded media and answers catalog queries. Blobs are
// served over a local HTTP endpoint advertised in presence.
type Module struct {
	log      *zap.Logger
	client   *mqttserver.Client
	config   Config
	storage  *Storage
	idgen    idgen.Generator
	cmdTopic string

	mu      sync.RWMutex
	baseURL string
	server  *http.Server
	ln      net.Listener
}

// NewModule creates a media store module.
func NewModule(log *zap.Logger, client *mqttserver.Client, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("root required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = wl.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Media Library"
	}
	if strings.TrimSpace(cfg.HTTPListen) == "" {
		cfg.HTTPListen = "127.0.0.1:0"
	}

	storage, err := NewStorage(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Module{
		log:      log,
		client:   client,
		config:   cfg,
		storage:  storage,
		cmdTopic: wl.TopicCommands(cfg.TopicBase, cfg.NodeID),
	}, nil
}

// Run starts the module.
func (m *Module) Run(ctx context.Context) error {
	if err := m.startHTTPServer(); err != nil {
		return err
	}
	if err := m.publishPresence(); err != nil {
		m.shutdownHTTPServer()
		return err
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		m.shutdownHTTPServer()
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	m.shutdownHTTPServer()
	return nil
}

func (m *Module) publishPresence() error {
	m.mu.RLock()
	baseURL := m.baseURL
	m.mu.RUnlock()

	presence := wl.Presence{
		NodeID: m.config.NodeID,
		Kind:   "library",
		Name:   m.config.Name,
		Caps: map[string]any{
			"query":   true,
			"search":  true,
			"resolve": true,
			"upload":  true,
		},
		Endpoints: map[string]string{"http": baseURL},
		TS:        time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(wl.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(msg paho.Message) {
	var cmd wl.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	reply := m.dispatch(cmd)
	if cmd.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(cmd wl.CommandEnvelope) wl.ReplyEnvelope {
	if strings.TrimSpace(cmd.From) == "" {
		return errorReply(cmd, wl.CodeUnauthenticated, "caller identity required")
	}
	reply := wl.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   time.Now().Unix(),
	}
	switch cmd.Type {
	case "media.query":
		return m.mediaQuery(cmd, reply)
	case "media.resolve":
		return m.mediaResolve(cmd, reply)
	case "media.delete":
		return m.mediaDelete(cmd, reply)
	case "media.search":
		return m.mediaSearch(cmd, reply)
	case "search.recent":
		return m.searchRecent(cmd, reply)
	case "search.clear":
		return m.searchClear(cmd, reply)
	default:
		return errorReply(cmd, wl.CodeInvalid, "unsupported command")
	}
}

func (m *Module) mediaQuery(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.MediaQueryBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	records, err := m.storage.ListRecords()
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	needle := strings.ToLower(strings.TrimSpace(body.NameContains))
	filtered := make([]wl.MediaRecord, 0, len(records))
	for _, record := range records {
		if body.Type != "" && record.Type != body.Type {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(record.Name), needle) {
			continue
		}
		filtered = append(filtered, record)
	}
	payload, _ := json.Marshal(wl.MediaQueryReply{Records: filtered})
	reply.Body = payload
	return reply
}

func (m *Module) mediaResolve(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.MediaResolveBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	records := make([]wl.MediaRecord, 0, len(body.IDs))
	for _, id := range body.IDs {
		record, ok, err := m.storage.GetRecord(id)
		if err != nil {
			return errorReply(cmd, wl.CodeInvalid, err.Error())
		}
		if !ok {
			continue
		}
		records = append(records, record)
	}
	payload, _ := json.Marshal(wl.MediaResolveReply{Records: records})
	reply.Body = payload
	return reply
}

// mediaDelete removes the blob before the row. If the blob removal fails
// the row stays so the record never points at lost storage silently.
func (m *Module) mediaDelete(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.MediaDeleteBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	record, ok, err := m.storage.GetRecord(body.ID)
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	if !ok {
		return errorReply(cmd, wl.CodeNotFound, "media not found")
	}
	if filename := blobNameFromURL(record.URL); filename != "" {
		if err := m.storage.DeleteBlob(filename); err != nil {
			m.log.Error("blob delete failed", zap.String("id", record.ID), zap.Error(err))
			return errorReply(cmd, wl.CodeConflict, "blob delete failed, record kept")
		}
	}
	if err := m.storage.DeleteRecord(record.ID); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	return reply
}

func (m *Module) mediaSearch(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.MediaSearchBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		payload, _ := json.Marshal(wl.MediaSearchReply{Records: []wl.MediaRecord{}})
		reply.Body = payload
		return reply
	}

	records, err := m.storage.ListRecords()
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	needle := strings.ToLower(query)
	seen := map[string]bool{}
	results := make([]wl.MediaRecord, 0)
	for _, record := range records {
		if !strings.Contains(strings.ToLower(record.Name), needle) {
			continue
		}
		if record.URL != "" && seen[record.URL] {
			continue
		}
		seen[record.URL] = true
		results = append(results, record)
	}

	// Blobs without a metadata row still show up, keyed by URL so a row
	// match always wins.
	names, err := m.storage.ListBlobNames()
	if err != nil {
		m.log.Warn("blob listing failed", zap.Error(err))
		names = nil
	}
	for _, name := range names {
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		blobURL := m.mediaURL(name)
		if seen[blobURL] {
			continue
		}
		seen[blobURL] = true
		results = append(results, wl.MediaRecord{
			ID:   blobID(blobURL),
			Name: name,
			Type: mediaTypeForExt(filepath.Ext(name)),
			URL:  blobURL,
		})
	}

	if err := m.storage.RecordSearch(cmd.From, query); err != nil {
		m.log.Warn("search history write failed", zap.Error(err))
	}

	payload, _ := json.Marshal(wl.MediaSearchReply{Records: results})
	reply.Body = payload
	return reply
}

func (m *Module) searchRecent(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	queries, err := m.storage.RecentSearches(cmd.From)
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	if queries == nil {
		queries = []string{}
	}
	payload, _ := json.Marshal(wl.RecentSearchesReply{Queries: queries})
	reply.Body = payload
	return reply
}

func (m *Module) searchClear(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	if err := m.storage.ClearSearches(cmd.From); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	return reply
}

func (m *Module) mediaURL(filename string) string {
	m.mu.RLock()
	baseURL := m.baseURL
	m.mu.RUnlock()
	return fmt.Sprintf("%s/media/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(filename))
}

func (m *Module) startHTTPServer() error {
	ln, err := net.Listen("tcp", m.config.HTTPListen)
	if err != nil {
		return err
	}
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	baseURL := fmt.Sprintf("http://%s:%s", host, port)
	mux := http.NewServeMux()
	mux.HandleFunc("/media/", m.serveMedia)
	mux.HandleFunc("/upload", m.handleUpload)
	server := &http.Server{Handler: mux}

	m.mu.Lock()
	m.baseURL = baseURL
	m.server = server
	m.ln = ln
	m.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Warn("http server stopped", zap.Error(err))
		}
	}()
	m.log.Info("http server started", zap.String("base_url", baseURL))
	return nil
}

func (m *Module) shutdownHTTPServer() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	ln := m.ln
	m.ln = nil
	m.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = server.Shutdown(ctx)
		cancel()
	}
}

func (m *Module) serveMedia(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/media/")
	filename, err := url.PathUnescape(filename)
	if err != nil || filename == "" {
		http.Error(w, "invalid media name", http.StatusBadRequest)
		return
	}
	f, err := m.storage.OpenBlob(filename)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, filepath.Base(filename), time.Now(), f)
}

func (m *Module) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner := strings.TrimSpace(r.Header.Get("X-Wavelength-User"))
	if owner == "" {
		http.Error(w, "caller identity required", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		http.Error(w, "filename required", http.StatusBadRequest)
		return
	}
	mediaType := classifyMedia(header.Header.Get("Content-Type"), filepath.Ext(filename))
	if mediaType == "" {
		http.Error(w, "unsupported media type", http.StatusBadRequest)
		return
	}

	size, err := m.storage.SaveBlob(filename, file)
	if err != nil {
		m.log.Error("blob save failed", zap.String("file", filename), zap.Error(err))
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	record := wl.MediaRecord{
		ID:        m.idgen.NewID(),
		Name:      filename,
		Type:      mediaType,
		URL:       m.mediaURL(filename),
		Size:      size,
		Artist:    m.probeArtist(filename),
		Owner:     owner,
		CreatedAt: time.Now().Unix(),
	}

	// A re-upload of the same filename overwrites the blob, so reuse the
	// row keyed by the same URL instead of leaving a duplicate behind.
	if existing, err := m.recordByURL(record.URL); err == nil && existing.ID != "" {
		record.ID = existing.ID
	}

	if err := m.storage.SaveRecord(record); err != nil {
		m.log.Error("record save failed", zap.String("id", record.ID), zap.Error(err))
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	m.log.Info("media uploaded",
		zap.String("id", record.ID),
		zap.String("name", record.Name),
		zap.String("type", record.Type),
		zap.Int64("size", record.Size),
		zap.String("owner", owner))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(record)
}

func (m *Module) recordByURL(mediaURL string) (wl.MediaRecord, error) {
	records, err := m.storage.ListRecords()
	if err != nil {
		return wl.MediaRecord{}, err
	}
	for _, record := range records {
		if record.URL == mediaURL {
			return record, nil
		}
	}
	return wl.MediaRecord{}, nil
}

func (m *Module) probeArtist(filename string) string {
	f, err := m.storage.OpenBlob(filename)
	if err != nil {
		return ""
	}
	defer f.Close()
	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(metadata.Artist())
}

func classifyMedia(contentType string, ext string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return wl.MediaAudio
	case strings.HasPrefix(contentType, "video/"):
		return wl.MediaVideo
	}
	return mediaTypeForExt(ext)
}

func mediaTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3", ".flac", ".ogg", ".m4a", ".wav", ".aac":
		return wl.MediaAudio
	case ".mp4", ".mkv", ".webm", ".mov":
		return wl.MediaVideo
	default:
		return ""
	}
}

// blobID derives a stable identifier for a blob that has no metadata row, so
// clients can still address it uniquely in selections.
func blobID(blobURL string) string {
	sum := sha1.Sum([]byte(blobURL))
	return fmt.Sprintf("blob_%x", sum[:8])
}

func blobNameFromURL(mediaURL string) string {
	parsed, err := url.Parse(mediaURL)
	if err != nil {
		return ""
	}
	name := strings.TrimPrefix(parsed.Path, "/media/")
	name, err = url.PathUnescape(name)
	if err != nil {
		return ""
	}
	return name
}

func errorReply(cmd wl.CommandEnvelope, code string, message string) wl.ReplyEnvelope {
	return wl.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &wl.ReplyError{Code: code, Message: message},
	}
}
