package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TopicBase string
	Timeout   time.Duration
}

// Client is an MQTT adapter implementing the Broker port.
type Client struct {
	client     paho.Client
	replyTopic string
	topicBase  string
	timeout    time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan wl.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = wl.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	c := &Client{
		replyTopic:    wl.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:     opts.TopicBase,
		timeout:       opts.Timeout,
		replyHandlers: map[string]chan wl.ReplyEnvelope{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.handleReply)
		token.Wait()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return c, nil
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes a command and waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, nodeID string, cmd wl.CommandEnvelope) (wl.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return wl.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := make(chan wl.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[cmd.ID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replyHandlers, cmd.ID)
		c.mu.Unlock()
	}()

	topic := wl.TopicCommands(c.topicBase, nodeID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return wl.ReplyEnvelope{}, token.Error()
	}

	select {
	case <-ctx.Done():
		return wl.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(c.timeout):
		return wl.ReplyEnvelope{}, errors.New("timeout waiting for reply")
	}
}

// ListPresence collects retained presence messages.
func (c *Client) ListPresence(ctx context.Context) ([]wl.Presence, error) {
	collect := make(map[string]wl.Presence)
	var collectMu sync.Mutex

	handler := func(_ paho.Client, msg paho.Message) {
		var presence wl.Presence
		if err := json.Unmarshal(msg.Payload(), &presence); err != nil {
			return
		}
		collectMu.Lock()
		collect[presence.NodeID] = presence
		collectMu.Unlock()
	}

	topic := fmt.Sprintf("%s/node/+/presence", c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	wait := time.NewTimer(250 * time.Millisecond)
	select {
	case <-ctx.Done():
		wait.Stop()
	case <-wait.C:
	}

	collectMu.Lock()
	defer collectMu.Unlock()
	out := make([]wl.Presence, 0, len(collect))
	for _, presence := range collect {
		out = append(out, presence)
	}
	return out, nil
}

// GetPlayerState returns the retained player state.
func (c *Client) GetPlayerState(ctx context.Context, nodeID string) (wl.PlayerState, error) {
	stateCh := make(chan wl.PlayerState, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var state wl.PlayerState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	topic := wl.TopicState(c.topicBase, nodeID)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return wl.PlayerState{}, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	select {
	case <-ctx.Done():
		return wl.PlayerState{}, ctx.Err()
	case state := <-stateCh:
		return state, nil
	case <-time.After(c.timeout):
		return wl.PlayerState{}, errors.New("timeout waiting for state")
	}
}

// WatchPlayer streams state and events for a player.
func (c *Client) WatchPlayer(ctx context.Context, nodeID string) (<-chan wl.PlayerState, <-chan wl.Event, <-chan error) {
	stateCh := make(chan wl.PlayerState, 8)
	eventCh := make(chan wl.Event, 8)
	errCh := make(chan error, 1)

	stateHandler := func(_ paho.Client, msg paho.Message) {
		var state wl.PlayerState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	eventHandler := func(_ paho.Client, msg paho.Message) {
		var evt wl.Event
		if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
			return
		}
		select {
		case eventCh <- evt:
		default:
		}
	}

	stateTopic := wl.TopicState(c.topicBase, nodeID)
	eventTopic := wl.TopicEvents(c.topicBase, nodeID)

	if token := c.client.Subscribe(stateTopic, 1, stateHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, eventCh, errCh
	}
	if token := c.client.Subscribe(eventTopic, 1, eventHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, eventCh, errCh
	}

	go func() {
		<-ctx.Done()
		c.client.Unsubscribe(stateTopic, eventTopic)
		close(stateCh)
		close(eventCh)
		close(errCh)
	}()

	return stateCh, eventCh, errCh
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	var reply wl.ReplyEnvelope
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}
