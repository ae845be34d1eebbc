// pattern: Imperative Shell
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
)

// Handler is an application callback invoked with the raw payload of each
// event of a subscribed type.
type Handler func(data []byte)

// UnsubscribeFunc removes the registration that produced it. Calling it more
// than once is a no-op.
type UnsubscribeFunc func()

// StateListener observes connection state transitions.
type StateListener func(state State)

// ManagerConfig configures the event stream manager.
type ManagerConfig struct {
	URL         string        // SSE endpoint
	TokenFunc   func() string // returns the current API key; consulted on every open
	BackoffBase time.Duration // first reconnect delay (default 1s)
	BackoffMax  time.Duration // reconnect delay cap (default 30s)
	Dedup       bool          // drop byte-identical repeat events
	DedupSize   int           // dedup cache entries (default 256)
	Factory     ClientFactory // connection constructor (default NewClient)
}

// handlerEntry pairs a handler with the registration id its unsubscribe
// capability removes.
type handlerEntry struct {
	id uint64
	fn Handler
}

// stateEntry pairs a state listener with its registration id.
type stateEntry struct {
	id uint64
	fn StateListener
}

// Manager owns the single SSE connection and multiplexes it to subscribers
// keyed by event type. The connection opens when the first handler
// subscribes, survives failures via exponential backoff while any handler
// remains, and tears down when the last handler unsubscribes.
//
// Construct one Manager per process and share it; each Manager holds at
// most one live connection.
type Manager struct {
	cfg    ManagerConfig
	logger *logging.ScopedLogger

	mu        sync.Mutex
	state     State
	handlers  map[string][]handlerEntry
	armed     map[string]struct{}
	listeners []stateEntry
	nextID    uint64

	client         Client
	connectEpoch   uint64 // increments per connection; stale goroutines check it
	attempt        int
	reconnectTimer *time.Timer

	queue      *dispatchQueue
	dedup      *Deduplicator
	dispatchWG sync.WaitGroup
	closed     bool
}

// NewManager creates an event stream manager. The returned manager is idle:
// no connection exists until the first Subscribe call.
func NewManager(cfg ManagerConfig, logger *logging.ScopedLogger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.Factory == nil {
		cfg.Factory = NewClient
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		state:    StateDisconnected,
		handlers: make(map[string][]handlerEntry),
		armed:    make(map[string]struct{}),
		queue:    newDispatchQueue(),
	}

	if cfg.Dedup {
		size := cfg.DedupSize
		if size <= 0 {
			size = 256
		}
		// Size is positive here, so construction cannot fail.
		m.dedup, _ = NewDeduplicator(size)
	}

	m.dispatchWG.Add(1)
	go m.dispatchLoop()

	return m
}

// Subscribe registers a handler for the named event type. The first
// subscriber overall triggers the connection open. The returned capability
// removes exactly this registration; invoking it twice is harmless.
func (m *Manager) Subscribe(eventType string, handler Handler) UnsubscribeFunc {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	first := m.totalSubscribersLocked() == 0
	m.handlers[eventType] = append(m.handlers[eventType], handlerEntry{id: id, fn: handler})

	// Arm the type on a live connection immediately so no events are missed
	// between now and the next reconnect cycle.
	if m.state == StateConnected {
		m.armed[eventType] = struct{}{}
	}

	if first && !m.closed {
		m.openLocked()
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(eventType, id) })
	}
}

// unsubscribe removes the registration and tears the connection down when
// the last subscriber across all event types is gone.
func (m *Manager) unsubscribe(eventType string, id uint64) {
	m.mu.Lock()
	entries := m.handlers[eventType]
	for i, e := range entries {
		if e.id == id {
			m.handlers[eventType] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	// Never keep an event type with an empty handler set.
	if len(m.handlers[eventType]) == 0 {
		delete(m.handlers, eventType)
		delete(m.armed, eventType)
	}

	var notify []stateNotification
	if m.totalSubscribersLocked() == 0 {
		notify = m.teardownLocked()
	}
	m.mu.Unlock()
	m.deliverStateNotifications(notify)
}

// OnStateChange registers a connection state listener. The listener is
// invoked immediately with the current state, then once per transition.
func (m *Manager) OnStateChange(listener StateListener) UnsubscribeFunc {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, stateEntry{id: id, fn: listener})
	current := m.state
	m.mu.Unlock()

	listener(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			for i, e := range m.listeners {
				if e.id == id {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					break
				}
			}
			m.mu.Unlock()
		})
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the stream is currently connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Reconnect unconditionally tears down any existing connection and, if
// subscribers remain, immediately reopens, bypassing backoff once. Use after
// credential rotation.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	notify := m.dropConnectionLocked()
	if m.totalSubscribersLocked() > 0 && !m.closed {
		m.openLocked()
	}
	m.mu.Unlock()
	m.deliverStateNotifications(notify)
}

// Close tears down the connection and stops the dispatcher. The manager
// cannot be reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	notify := m.teardownLocked()
	m.mu.Unlock()
	m.deliverStateNotifications(notify)

	m.queue.close()
	m.dispatchWG.Wait()
}

// totalSubscribersLocked counts handlers across all event types.
func (m *Manager) totalSubscribersLocked() int {
	total := 0
	for _, entries := range m.handlers {
		total += len(entries)
	}
	return total
}

// openLocked starts a connection attempt. No-op when a connection object
// already exists or an open is in flight.
func (m *Manager) openLocked() {
	if m.client != nil || m.state == StateConnecting {
		return
	}

	clientCfg := ClientConfig{URL: m.cfg.URL}
	if m.cfg.TokenFunc != nil {
		clientCfg.APIKey = m.cfg.TokenFunc()
	}
	client := m.cfg.Factory(clientCfg)
	m.client = client
	m.connectEpoch++
	epoch := m.connectEpoch

	notify := m.setStateLocked(StateConnecting)

	go func() {
		m.deliverStateNotifications(notify)

		err := client.Connect(context.Background())

		m.mu.Lock()
		if m.connectEpoch != epoch || m.client != client {
			// A teardown or explicit reconnect superseded this attempt.
			m.mu.Unlock()
			_ = client.Close()
			return
		}

		if err != nil {
			m.logger.Warn("stream connect failed", "error", err)
			post := m.handleFailureLocked()
			m.mu.Unlock()
			m.deliverStateNotifications(post)
			return
		}

		m.attempt = 0
		// Rebuild the armed dispatcher set from the registry so in-flight
		// subscriptions are honored and stale arms from the previous
		// connection are gone.
		m.armed = make(map[string]struct{})
		for eventType := range m.handlers {
			m.armed[eventType] = struct{}{}
		}
		post := m.setStateLocked(StateConnected)
		m.mu.Unlock()

		m.logger.Info("stream connected", "url", m.cfg.URL)
		m.deliverStateNotifications(post)

		m.readLoop(client, epoch)
	}()
}

// readLoop fans inbound events out to the dispatch queue until the
// connection fails or is superseded.
func (m *Manager) readLoop(client Client, epoch uint64) {
	for {
		select {
		case err := <-client.Errors():
			m.mu.Lock()
			if m.connectEpoch != epoch || m.client != client {
				m.mu.Unlock()
				return
			}
			m.logger.Warn("stream connection lost", "error", err)
			notify := m.handleFailureLocked()
			m.mu.Unlock()
			m.deliverStateNotifications(notify)
			return

		case evt := <-client.Events():
			m.mu.Lock()
			if m.connectEpoch != epoch || m.client != client {
				m.mu.Unlock()
				return
			}
			if _, ok := m.armed[evt.Type]; !ok {
				m.mu.Unlock()
				continue
			}
			// Snapshot the handler set under the lock; the batch is
			// immutable from here on, so handlers that subscribe or
			// unsubscribe others mid-dispatch cannot corrupt this delivery.
			entries := m.handlers[evt.Type]
			snapshot := make([]Handler, len(entries))
			for i, e := range entries {
				snapshot[i] = e.fn
			}
			dedup := m.dedup
			m.mu.Unlock()

			if dedup != nil && dedup.Seen(evt.Type, evt.Data) {
				continue
			}

			m.queue.push(dispatchBatch{
				eventType: evt.Type,
				data:      evt.Data,
				handlers:  snapshot,
			})
		}
	}
}

// dispatchLoop drains the queue, invoking each batch's handlers in
// subscription order with per-handler panic isolation.
func (m *Manager) dispatchLoop() {
	defer m.dispatchWG.Done()
	for {
		batch, ok := m.queue.pop()
		if !ok {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			<-m.queue.wait()
			continue
		}
		for _, h := range batch.handlers {
			m.invoke(batch.eventType, h, batch.data)
		}
	}
}

// invoke runs one handler, containing panics so one bad handler cannot
// starve the rest of its batch.
func (m *Manager) invoke(eventType string, h Handler, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked", "event_type", eventType, "panic", r)
		}
	}()
	h(data)
}

// handleFailureLocked discards the dead connection and schedules a
// reconnect when subscribers remain.
func (m *Manager) handleFailureLocked() []stateNotification {
	m.dropClientLocked()
	notify := m.setStateLocked(StateDisconnected)
	if m.totalSubscribersLocked() > 0 && !m.closed {
		m.scheduleReconnectLocked()
	}
	return notify
}

// scheduleReconnectLocked arms the backoff timer, replacing any pending one
// so timers never overlap. The attempt counter only resets on a successful
// open.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	delay := reconnectDelay(m.attempt, m.cfg.BackoffBase, m.cfg.BackoffMax)
	m.attempt++
	m.logger.Info("scheduling reconnect", "delay", delay, "attempt", m.attempt)

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		if m.totalSubscribersLocked() > 0 && !m.closed {
			m.openLocked()
		}
		m.mu.Unlock()
	})
}

// dropConnectionLocked cancels the pending reconnect and discards the
// connection, moving to disconnected without scheduling anything.
func (m *Manager) dropConnectionLocked() []stateNotification {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.dropClientLocked()
	return m.setStateLocked(StateDisconnected)
}

// teardownLocked ends the logical session: timer cancelled, connection
// closed, dispatcher bookkeeping cleared, attempt counter reset.
func (m *Manager) teardownLocked() []stateNotification {
	notify := m.dropConnectionLocked()
	m.attempt = 0
	return notify
}

// dropClientLocked closes and forgets the connection primitive and clears
// the armed dispatcher set.
func (m *Manager) dropClientLocked() {
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
	m.connectEpoch++
	m.armed = make(map[string]struct{})
}

// stateNotification is a pending listener callback captured under the lock
// and delivered outside it.
type stateNotification struct {
	fn    StateListener
	state State
}

// setStateLocked updates the state and returns the listener callbacks to
// deliver. Same-state no-ops produce no notifications.
func (m *Manager) setStateLocked(s State) []stateNotification {
	if m.state == s {
		return nil
	}
	m.state = s
	notify := make([]stateNotification, len(m.listeners))
	for i, e := range m.listeners {
		notify[i] = stateNotification{fn: e.fn, state: s}
	}
	return notify
}

// deliverStateNotifications invokes captured listener callbacks without
// holding the manager lock, so listeners may call back into the manager.
func (m *Manager) deliverStateNotifications(notify []stateNotification) {
	for _, n := range notify {
		n.fn(n.state)
	}
}
