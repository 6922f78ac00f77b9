package podcastfeed

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mmcdole/gofeed"

	"github.com/wavelength-media/wavelength/internal/adapters/mqttserver"
	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

// Config configures the podcast feed module.
type Config struct {
	NodeID          string
	TopicBase       string
	Name            string
	Root            string
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// Module serves podcast subscriptions. Episodes surface as ordinary media
// records whose URL points at the feed's enclosure, so players stream them
// like any uploaded track.
type Module struct {
	log      *zap.Logger
	client   *mqttserver.Client
	http     *http.Client
	config   Config
	cmdTopic string

	mu    sync.Mutex
	subs  []subscription
	feeds map[string]*cachedFeed
}

type subscription struct {
	FeedID  string `json:"feedId"`
	URL     string `json:"url"`
	AddedAt int64  `json:"addedAt"`
}

type cachedFeed struct {
	FeedID    string          `json:"feedId"`
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	FetchedAt int64           `json:"fetchedAt"`
	Episodes  []cachedEpisode `json:"episodes"`
}

type cachedEpisode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	AudioURL  string `json:"audioUrl"`
	AudioType string `json:"audioType"`
	Published int64  `json:"published"`
	Length    int64  `json:"length"`
}

// NewModule creates a podcast feed module.
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
		cfg.Name = "Podcast Feeds"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, err
	}

	m := &Module{
		log:      log,
		client:   client,
		http:     &http.Client{Timeout: cfg.Timeout},
		config:   cfg,
		cmdTopic: wl.TopicCommands(cfg.TopicBase, cfg.NodeID),
		feeds:    make(map[string]*cachedFeed),
	}
	if err := m.loadSubscriptions(); err != nil {
		return nil, err
	}
	return m, nil
}

// Run starts the module.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

	go m.runRefresh(ctx)

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	presence := wl.Presence{
		NodeID: m.config.NodeID,
		Kind:   "feeds",
		Name:   m.config.Name,
		Caps: map[string]any{
			"subscribe": true,
			"episodes":  true,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(wl.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) runRefresh(ctx context.Context) {
	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshAll()
		}
	}
}

func (m *Module) refreshAll() {
	m.mu.Lock()
	subs := append([]subscription(nil), m.subs...)
	m.mu.Unlock()

	for _, sub := range subs {
		if _, err := m.loadFeed(sub, true); err != nil {
			m.log.Warn("refresh feed", zap.String("url", sub.URL), zap.Error(err))
		}
	}
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
	case "feed.add":
		return m.feedAdd(cmd, reply)
	case "feed.remove":
		return m.feedRemove(cmd, reply)
	case "feed.list":
		return m.feedList(cmd, reply)
	case "feed.episodes":
		return m.feedEpisodes(cmd, reply)
	default:
		return errorReply(cmd, wl.CodeInvalid, "unsupported command")
	}
}

func (m *Module) feedAdd(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.FeedAddBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	url := strings.TrimSpace(body.URL)
	if url == "" {
		return errorReply(cmd, wl.CodeInvalid, "url required")
	}

	sub := subscription{FeedID: hashID("feed", url), URL: url, AddedAt: time.Now().Unix()}

	m.mu.Lock()
	for _, existing := range m.subs {
		if existing.FeedID == sub.FeedID {
			m.mu.Unlock()
			return errorReply(cmd, wl.CodeConflict, "already subscribed")
		}
	}
	m.mu.Unlock()

	// Fetch before committing so a dead URL is rejected up front.
	if _, err := m.loadFeed(sub, true); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}

	m.mu.Lock()
	m.subs = append(m.subs, sub)
	err := m.saveSubscriptionsLocked()
	m.mu.Unlock()
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	return reply
}

func (m *Module) feedRemove(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.FeedRemoveBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.subs[:0]
	found := false
	for _, sub := range m.subs {
		if sub.FeedID == body.FeedID {
			found = true
			continue
		}
		filtered = append(filtered, sub)
	}
	if !found {
		return errorReply(cmd, wl.CodeNotFound, "feed not found")
	}
	m.subs = filtered
	delete(m.feeds, body.FeedID)
	_ = os.Remove(m.cachePath(body.FeedID))
	if err := m.saveSubscriptionsLocked(); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	return reply
}

func (m *Module) feedList(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	m.mu.Lock()
	subs := append([]subscription(nil), m.subs...)
	m.mu.Unlock()

	out := wl.FeedListReply{Feeds: make([]wl.FeedSummary, 0, len(subs))}
	for _, sub := range subs {
		summary := wl.FeedSummary{FeedID: sub.FeedID, Title: sub.URL, URL: sub.URL}
		if feed, err := m.loadFeed(sub, false); err == nil {
			summary.Title = feed.Title
			summary.Episodes = int64(len(feed.Episodes))
		} else {
			m.log.Warn("load feed", zap.String("url", sub.URL), zap.Error(err))
		}
		out.Feeds = append(out.Feeds, summary)
	}
	payload, _ := json.Marshal(out)
	reply.Body = payload
	return reply
}

func (m *Module) feedEpisodes(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.FeedEpisodesBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}

	m.mu.Lock()
	var sub *subscription
	for i := range m.subs {
		if m.subs[i].FeedID == body.FeedID {
			sub = &m.subs[i]
			break
		}
	}
	m.mu.Unlock()
	if sub == nil {
		return errorReply(cmd, wl.CodeNotFound, "feed not found")
	}

	feed, err := m.loadFeed(*sub, false)
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}

	query := strings.TrimSpace(strings.ToLower(body.Query))
	out := wl.FeedEpisodesReply{Episodes: make([]wl.MediaRecord, 0, len(feed.Episodes))}
	for _, episode := range feed.Episodes {
		if episode.AudioURL == "" {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(episode.Title), query) {
			continue
		}
		out.Episodes = append(out.Episodes, wl.MediaRecord{
			ID:        episode.ID,
			Name:      episode.Title,
			Type:      wl.MediaAudio,
			URL:       episode.AudioURL,
			Size:      episode.Length,
			Artist:    episode.Author,
			CreatedAt: episode.Published,
		})
	}
	payload, _ := json.Marshal(out)
	reply.Body = payload
	return reply
}

// loadFeed returns the cached feed, refetching when stale or forced. A fetch
// failure falls back to the last good cache if one exists.
func (m *Module) loadFeed(sub subscription, force bool) (*cachedFeed, error) {
	m.mu.Lock()
	if feed, ok := m.feeds[sub.FeedID]; ok && !force && !m.isStale(feed.FetchedAt) {
		m.mu.Unlock()
		return feed, nil
	}
	m.mu.Unlock()

	cached, err := m.readCache(sub.FeedID)
	if err == nil && cached != nil && !force && !m.isStale(cached.FetchedAt) {
		m.storeFeed(cached)
		return cached, nil
	}

	fetched, fetchErr := m.fetchFeed(sub)
	if fetchErr != nil {
		if cached != nil {
			m.storeFeed(cached)
			return cached, nil
		}
		return nil, fetchErr
	}

	if err := m.writeCache(fetched); err != nil {
		m.log.Warn("write cache", zap.Error(err))
	}
	m.storeFeed(fetched)
	return fetched, nil
}

func (m *Module) storeFeed(feed *cachedFeed) {
	m.mu.Lock()
	m.feeds[feed.FeedID] = feed
	m.mu.Unlock()
}

func (m *Module) isStale(fetchedAt int64) bool {
	if fetchedAt == 0 {
		return true
	}
	return time.Since(time.Unix(fetchedAt, 0)) > m.config.RefreshInterval
}

func (m *Module) fetchFeed(sub subscription) (*cachedFeed, error) {
	req, err := http.NewRequest(http.MethodGet, sub.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "wavelength/1.0")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = sub.URL
	}
	episodes := make([]cachedEpisode, 0, len(feed.Items))
	for _, item := range feed.Items {
		episode := buildEpisode(sub.FeedID, feed, item)
		if episode.ID == "" {
			continue
		}
		episodes = append(episodes, episode)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Published > episodes[j].Published })

	return &cachedFeed{
		FeedID:    sub.FeedID,
		URL:       sub.URL,
		Title:     title,
		FetchedAt: time.Now().Unix(),
		Episodes:  episodes,
	}, nil
}

func buildEpisode(feedID string, feed *gofeed.Feed, item *gofeed.Item) cachedEpisode {
	if item == nil {
		return cachedEpisode{}
	}
	audioURL, audioType, length := pickEnclosure(item)
	key := strings.TrimSpace(item.GUID)
	if key == "" {
		key = audioURL
	}
	if key == "" {
		key = strings.TrimSpace(item.Title)
	}
	if key == "" {
		return cachedEpisode{}
	}

	author := ""
	if item.Author != nil {
		author = strings.TrimSpace(item.Author.Name)
	}
	if author == "" && feed != nil && feed.Author != nil {
		author = strings.TrimSpace(feed.Author.Name)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = key
	}

	var published int64
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Unix()
	}

	return cachedEpisode{
		ID:        hashID("episode", feedID+":"+key),
		Title:     title,
		Author:    author,
		AudioURL:  audioURL,
		AudioType: audioType,
		Published: published,
		Length:    length,
	}
}

func pickEnclosure(item *gofeed.Item) (string, string, int64) {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		var length int64
		fmt.Sscanf(enc.Length, "%d", &length)
		return enc.URL, enc.Type, length
	}
	return "", "", 0
}

func (m *Module) subsPath() string {
	return filepath.Join(m.config.Root, "subscriptions.json")
}

func (m *Module) cachePath(feedID string) string {
	return filepath.Join(m.config.Root, fmt.Sprintf("feed_%s.json", feedID))
}

func (m *Module) loadSubscriptions() error {
	data, err := os.ReadFile(m.subsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &m.subs)
}

func (m *Module) saveSubscriptionsLocked() error {
	data, err := json.MarshalIndent(m.subs, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", m.subsPath(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.subsPath())
}

func (m *Module) readCache(feedID string) (*cachedFeed, error) {
	data, err := os.ReadFile(m.cachePath(feedID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cached cachedFeed
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (m *Module) writeCache(feed *cachedFeed) error {
	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return err
	}
	path := m.cachePath(feed.FeedID)
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hashID(prefix string, input string) string {
	sum := sha1.Sum([]byte(input))
	return fmt.Sprintf("%s_%x", prefix, sum[:8])
}

func errorReply(cmd wl.CommandEnvelope, code string, message string) wl.ReplyEnvelope {
	return wl.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err: &wl.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
