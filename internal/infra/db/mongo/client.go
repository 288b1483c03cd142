package mongo

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"saas-billing-backend/internal/domain"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	connectAttempts = 3
	maxConnectWait  = 30 * time.Second
	dialTimeout     = 10 * time.Second
)

// HealthStatus is what the health endpoint reports.
type HealthStatus struct {
	State       State      `json:"state"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Manager owns the single pooled client for the process. Concurrent
// Connect callers while state is connecting await the in-flight attempt
// instead of dialing a second time.
type Manager struct {
	uri    string
	dbName string
	log    *zerolog.Logger

	mu          sync.Mutex
	state       State
	client      *mongo.Client
	lastErr     error
	connectedAt time.Time
	inflight    chan struct{}

	dial func(ctx context.Context) (*mongo.Client, error)
}

func NewManager(uri, dbName string, logger *zerolog.Logger) *Manager {
	m := &Manager{
		uri:    uri,
		dbName: dbName,
		log:    logger,
		state:  StateDisconnected,
	}
	m.dial = m.dialMongo
	return m
}

// Connect returns once the pooled client is ready, or with a
// *domain.ConnectionError after the retry budget (3 attempts, exponential
// backoff, 30s total) is exhausted.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil
	case StateConnecting:
		ch := m.inflight
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == StateConnected {
			return nil
		}
		return &domain.ConnectionError{Attempts: connectAttempts, Err: m.lastErr}
	}

	ch := make(chan struct{})
	m.state = StateConnecting
	m.inflight = ch
	m.mu.Unlock()

	client, err := m.attempt(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = StateDisconnected
		m.lastErr = err
	} else {
		m.state = StateConnected
		m.client = client
		m.connectedAt = time.Now()
		m.lastErr = nil
	}
	m.inflight = nil
	close(ch)
	m.mu.Unlock()

	if err != nil {
		return &domain.ConnectionError{Attempts: connectAttempts, Err: err}
	}
	m.log.Info().Str("db", m.dbName).Msg("mongo connected")
	return nil
}

func (m *Manager) attempt(ctx context.Context) (*mongo.Client, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = maxConnectWait

	var client *mongo.Client
	op := func() error {
		c, err := m.dial(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("mongo dial failed")
			return err
		}
		client = c
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (m *Manager) dialMongo(ctx context.Context) (*mongo.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := mongo.Connect(dctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(dctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Client returns the pooled client. Valid only after Connect succeeded.
func (m *Manager) Client() *mongo.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Database returns a handle on the configured database.
func (m *Manager) Database() *mongo.Database {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	return m.client.Database(m.dbName)
}

func (m *Manager) Health() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := HealthStatus{State: m.state}
	if m.lastErr != nil {
		h.LastError = m.lastErr.Error()
	}
	if !m.connectedAt.IsZero() {
		t := m.connectedAt
		h.ConnectedAt = &t
	}
	return h
}

// Close disconnects the client. Called on process termination.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
