package realtime

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/pkg/exception"
)

const (
	// DefaultMaxRetries is how many automatic reconnect attempts run before
	// the supervisor gives up and surfaces StatusFailed.
	DefaultMaxRetries = 5
	// DefaultQueueCap bounds the outbound queue under sustained disconnection.
	DefaultQueueCap = 200
)

// Option defines the supervisor runtime configuration.
type Option struct {
	// Endpoint is the default realtime URL used when Connect is called with
	// an empty endpoint. Optional.
	Endpoint string
	// Backoff defines the retry delay schedule. Optional; default
	// DefaultBackoff when all fields are zero.
	Backoff Backoff
	// MaxRetries caps consecutive automatic reconnect attempts. Optional;
	// default DefaultMaxRetries (5).
	MaxRetries int
	// QueueCap bounds the outbound queue. Optional; default DefaultQueueCap (200).
	QueueCap int
	// QueueMaxAge drops queued messages older than this on flush when >0.
	// Optional; default 0 (keep all).
	QueueMaxAge time.Duration
	// Auth gates connection attempts; an unauthenticated attempt fails
	// immediately without consuming a retry slot. Optional.
	Auth AuthProvider
	// Channel builds the owned channel. Optional; default NewGorillaChannel().
	Channel ChannelFactory
	// OnConnect runs after every connected transition, after the queue flush
	// and intent re-send. Optional.
	OnConnect func()
	// OnDisconnect runs after every channel loss with the terminal error. Optional.
	OnDisconnect func(err error)
}

func (opt *Option) init() {
	if opt.MaxRetries <= 0 {
		opt.MaxRetries = DefaultMaxRetries
	}
	if opt.QueueCap <= 0 {
		opt.QueueCap = DefaultQueueCap
	}
	if opt.Backoff.Min == 0 && opt.Backoff.Max == 0 && opt.Backoff.Factor == 0 {
		opt.Backoff = DefaultBackoff()
	}
	if opt.Channel == nil {
		opt.Channel = NewGorillaChannel()
	}
}

// Supervisor owns one channel and drives its lifecycle: connect, detect
// loss, retry with backoff, manual disconnect. Many independent listeners
// share the same channel through its fan-out registry.
//
// Connection loss is never surfaced as an error; callers observe outcomes
// through status transitions.
type Supervisor struct {
	opt      Option
	channel  Channel
	registry *registry
	status   statusFanout
	queue    *outboundQueue
	intents  *intentSet

	mu            sync.Mutex
	state         Status
	endpoint      string
	attempt       int
	gen           uint64
	retryTimer    *time.Timer
	lastAttemptAt time.Time
}

// New builds a supervisor. The supervisor is meant to be explicitly owned
// and passed to interested parties; one instance per client session.
func New(option ...Option) *Supervisor {
	var opt Option
	if len(option) != 0 {
		opt = option[0]
	}
	opt.init()

	s := &Supervisor{
		opt:      opt,
		registry: newRegistry(),
		queue:    newOutboundQueue(opt.QueueCap, opt.QueueMaxAge),
		intents:  newIntentSet(),
		state:    StatusIdle,
	}
	s.channel = opt.Channel(&channelEvents{s: s})
	return s
}

// Connect begins connecting to the endpoint and returns before the outcome
// is known; observe the result via OnStatusChange. Calling while already
// connecting or connected to the same endpoint is a no-op; a different
// endpoint triggers a disconnect-then-connect switch.
func (s *Supervisor) Connect(endpoint string) {
	if endpoint == "" {
		endpoint = s.opt.Endpoint
	}

	s.mu.Lock()
	if (s.state == StatusConnecting || s.state == StatusConnected) && endpoint == s.endpoint {
		s.mu.Unlock()
		return
	}

	if s.state == StatusConnecting || s.state == StatusConnected {
		// Switch semantics: full disconnect first.
		s.teardownLocked()
		s.mu.Unlock()
		s.channel.Close()
		s.status.emit(StatusIdle)
		s.mu.Lock()
	}

	s.gen++
	s.stopRetryLocked()
	s.attempt = 0
	s.endpoint = endpoint

	if !s.authenticatedLocked() {
		s.state = StatusFailed
		s.mu.Unlock()
		logs.Warnf("connect refused, err: %+v", exception.ErrNotAuthenticated)
		if s.opt.OnDisconnect != nil {
			s.opt.OnDisconnect(exception.ErrNotAuthenticated)
		}
		s.status.emit(StatusFailed)
		return
	}

	s.state = StatusConnecting
	s.lastAttemptAt = time.Now()
	creds := s.credentialsLocked()
	s.mu.Unlock()

	s.status.emit(StatusConnecting)
	s.channel.Open(endpoint, creds)
}

// Disconnect cancels any pending retry, closes the channel, clears the
// outbound queue and all subscription intents, and moves to StatusIdle.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	changed := s.state != StatusIdle
	s.teardownLocked()
	s.mu.Unlock()

	s.channel.Close()
	if changed {
		s.status.emit(StatusIdle)
	}
}

// Close disconnects and drops every registered listener. The supervisor
// must not be used afterwards.
func (s *Supervisor) Close() {
	s.Disconnect()
	s.registry.clear()
	s.status.clear()
}

// Status returns the current connection state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStatusChange registers a callback for status transitions and returns
// its revocation func.
func (s *Supervisor) OnStatusChange(fn StatusHandler) (unsubscribe func()) {
	return s.status.subscribe(fn)
}

// Subscribe registers an event handler for a topic. Every handler receives
// every matching event exactly once, in channel delivery order. The handler
// may unsubscribe itself or another handler while being invoked.
func (s *Supervisor) Subscribe(topic Topic, fn EventHandler) (unsubscribe func()) {
	return s.registry.add(topic, fn)
}

// Send writes one outbound message when connected, or buffers it for the
// next flush otherwise. Delivery is not acknowledged at this layer.
func (s *Supervisor) Send(topic Topic, payload []byte) {
	s.mu.Lock()
	connected := s.state == StatusConnected
	s.mu.Unlock()

	if connected {
		s.channel.Send(topic, payload)
		return
	}
	s.queue.push(topic, payload)
}

// QueuedMessages returns the number of buffered outbound messages.
func (s *Supervisor) QueuedMessages() int {
	return s.queue.len()
}

// QueueEvictions returns how many buffered messages were dropped to honor
// the queue cap or max age.
func (s *Supervisor) QueueEvictions() uint64 {
	return s.queue.evictions()
}

// RetryState reports the consecutive failure count and when the last
// connection attempt started.
func (s *Supervisor) RetryState() (attempts int, lastAttemptAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt, s.lastAttemptAt
}

// DeclareInterest declares interest in one topic narrowed by filter. The
// matching intent is asserted to the server now if connected, and
// re-asserted automatically after every reconnect. The returned feed holds
// the latest matching event and a bounded history.
func (s *Supervisor) DeclareInterest(topic Topic, filter Filter) *Feed {
	feed := newFeed(topic, filter, historyBound(topic))
	owner := s.intents.declare(topic, filter)
	removeListener := s.registry.add(topic, feed.accept)

	feed.redeclare = func(next Filter) {
		prev := feed.swapFilter(next)
		s.intents.redeclare(topic, owner, next)

		s.mu.Lock()
		connected := s.state == StatusConnected
		s.mu.Unlock()
		if !connected || prev.FarmID == next.FarmID {
			return
		}
		if prev.FarmID != "" && !s.intents.wants(prev.FarmID) {
			s.channel.Send(TopicLeaveFarm, encodeFarmControl(prev.FarmID))
		}
		if next.FarmID != "" {
			s.channel.Send(TopicJoinFarm, encodeFarmControl(next.FarmID))
		}
	}

	var once sync.Once
	feed.unsubscribe = func() {
		once.Do(func() {
			removeListener()
			farmID, stillWanted := s.intents.revoke(topic, owner)
			if stillWanted || farmID == "" {
				return
			}
			s.mu.Lock()
			connected := s.state == StatusConnected
			s.mu.Unlock()
			if connected {
				s.channel.Send(TopicLeaveFarm, encodeFarmControl(farmID))
			}
		})
	}

	s.mu.Lock()
	connected := s.state == StatusConnected
	s.mu.Unlock()
	if connected && filter.FarmID != "" {
		s.channel.Send(TopicJoinFarm, encodeFarmControl(filter.FarmID))
	}
	return feed
}

// IntentCount returns the number of active subscription intents.
func (s *Supervisor) IntentCount() int {
	return s.intents.count()
}

func (s *Supervisor) authenticatedLocked() bool {
	return s.opt.Auth == nil || s.opt.Auth.IsAuthenticated()
}

func (s *Supervisor) credentialsLocked() Credentials {
	if s.opt.Auth == nil {
		return Credentials{}
	}
	return Credentials{UserID: s.opt.Auth.UserID(), Token: s.opt.Auth.Token()}
}

// teardownLocked applies the disconnect transition. The channel close runs
// outside the lock; callers must follow up with channel.Close.
func (s *Supervisor) teardownLocked() {
	s.gen++
	s.stopRetryLocked()
	s.state = StatusIdle
	s.attempt = 0
	s.queue.clear()
	s.intents.clear()
}

func (s *Supervisor) stopRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Supervisor) handleConnected() {
	s.mu.Lock()
	if s.state != StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StatusConnected
	s.attempt = 0
	s.mu.Unlock()

	s.status.emit(StatusConnected)

	// Flush first so subscription acks are not stale relative to queued
	// application messages.
	for _, queued := range s.queue.flush() {
		s.channel.Send(queued.Topic, queued.Payload)
	}
	for _, farmID := range s.intents.farms() {
		s.channel.Send(TopicJoinFarm, encodeFarmControl(farmID))
	}

	if s.opt.OnConnect != nil {
		s.opt.OnConnect()
	}
}

func (s *Supervisor) handleLost(reason error) {
	s.mu.Lock()
	if s.state != StatusConnected && s.state != StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.attempt++
	next := StatusDisconnected
	if s.attempt > s.opt.MaxRetries {
		next = StatusFailed
	}
	s.state = next
	if next == StatusDisconnected {
		delay := s.opt.Backoff.Next(s.attempt)
		gen := s.gen
		s.retryTimer = time.AfterFunc(delay, func() { s.retry(gen) })
		logs.Warnf("channel lost, retry %d in %s, err: %+v", s.attempt, delay, reason)
	} else {
		logs.Errorf("channel lost, retries exhausted, err: %+v", reason)
	}
	s.mu.Unlock()

	if s.opt.OnDisconnect != nil {
		s.opt.OnDisconnect(reason)
	}
	s.status.emit(next)
}

// retry runs when a backoff timer fires. A stale generation means a manual
// disconnect or a fresh connect raced the timer; the fire becomes a no-op.
func (s *Supervisor) retry(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StatusDisconnected {
		s.mu.Unlock()
		return
	}
	if !s.authenticatedLocked() {
		s.state = StatusFailed
		s.mu.Unlock()
		logs.Warnf("retry refused, err: %+v", exception.ErrNotAuthenticated)
		s.status.emit(StatusFailed)
		return
	}
	s.state = StatusConnecting
	s.lastAttemptAt = time.Now()
	endpoint := s.endpoint
	creds := s.credentialsLocked()
	s.mu.Unlock()

	s.status.emit(StatusConnecting)
	s.channel.Open(endpoint, creds)
}

func (s *Supervisor) handleEvent(topic Topic, payload []byte) {
	s.registry.dispatch(topic, payload)
}

// channelEvents adapts the supervisor onto the ChannelHandler contract
// without exporting handler methods on Supervisor itself.
type channelEvents struct {
	s *Supervisor
}

func (e *channelEvents) HandleConnected()                { e.s.handleConnected() }
func (e *channelEvents) HandleDisconnected(reason error) { e.s.handleLost(reason) }
func (e *channelEvents) HandleErrored(reason error)      { e.s.handleLost(reason) }

func (e *channelEvents) HandleEvent(topic Topic, body []byte) { e.s.handleEvent(topic, body) }
