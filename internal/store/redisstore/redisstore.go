// Package redisstore implements store.Backend over Redis. Progress lives in
// a hash of JSON-encoded values, settings in a JSON string, and every write
// publishes on a per-user channel.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

const (
	defaultPrefix     = "chapterwise"
	defaultRetryDelay = time.Second
)

// Config holds connection settings for Open.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Open returns a configured, pinged Redis client.
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type Store struct {
	client     *redis.Client
	prefix     string
	retryDelay time.Duration
	log        *zap.Logger
}

var _ store.Backend = (*Store)(nil)

type Option func(*Store)

func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRetryDelay sets the pause between listener reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     defaultPrefix,
		retryDelay: defaultRetryDelay,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) progressKey(userID string) string { return s.prefix + ":" + userID + ":progress" }
func (s *Store) settingsKey(userID string) string { return s.prefix + ":" + userID + ":settings" }

// Channel returns the pub/sub channel carrying change notices for userID.
func (s *Store) Channel(userID string) string { return s.prefix + ":" + userID + ":changes" }

func (s *Store) Load(ctx context.Context, userID string) (*store.Snapshot, error) {
	var (
		progressCmd *redis.MapStringStringCmd
		settingsCmd *redis.StringCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		progressCmd = p.HGetAll(ctx, s.progressKey(userID))
		settingsCmd = p.Get(ctx, s.settingsKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis load %s: %w", userID, err)
	}

	raw, err := progressCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.progressKey(userID), err)
	}
	snap := store.Snapshot{Data: make(domain.UserData, len(raw))}
	for k, v := range raw {
		snap.Data[k] = store.DecodeValue(v)
	}

	doc, err := settingsCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
		if len(raw) == 0 {
			return nil, nil
		}
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", s.settingsKey(userID), err)
	default:
		if snap.Settings, err = store.DecodeSettings(doc); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

func (s *Store) SaveProgress(ctx context.Context, userID string, data domain.UserData) error {
	set := make(map[string]any, len(data))
	var del []string
	for k, v := range data {
		if v == nil {
			del = append(del, k)
			continue
		}
		raw, err := store.EncodeValue(v)
		if err != nil {
			return err
		}
		set[k] = raw
	}

	key := s.progressKey(userID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(set) > 0 {
			p.HSet(ctx, key, set)
		}
		if len(del) > 0 {
			p.HDel(ctx, key, del...)
		}
		p.Publish(ctx, s.Channel(userID), "progress")
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save progress %s: %w", userID, err)
	}
	return nil
}

func (s *Store) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	doc, err := store.EncodeSettings(settings)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.settingsKey(userID), doc, 0)
		p.Publish(ctx, s.Channel(userID), "settings")
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save settings %s: %w", userID, err)
	}
	return nil
}

// Subscribe listens on the user's change channel. Every notice triggers a
// full reload that is handed to onSnapshot. Receive errors are reported as
// disconnects; the next confirmed subscription reports reconnection and
// reloads once to cover missed notices.
func (s *Store) Subscribe(ctx context.Context, userID string, onSnapshot store.SnapshotFunc, onStatus store.StatusFunc) (func(), error) {
	ps := s.client.Subscribe(ctx, s.Channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.Channel(userID), err)
	}
	if onStatus == nil {
		onStatus = func(bool, error) {}
	}
	onStatus(true, nil)

	subCtx, cancel := context.WithCancel(context.Background())
	go s.listen(subCtx, ps, userID, onSnapshot, onStatus)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}, nil
}

func (s *Store) listen(ctx context.Context, ps *redis.PubSub, userID string, onSnapshot store.SnapshotFunc, onStatus store.StatusFunc) {
	connected := true
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			if connected {
				connected = false
				s.log.Warn("redis listener dropped", zap.String("user_id", userID), zap.Error(err))
				onStatus(false, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}

		switch msg.(type) {
		case *redis.Subscription:
			if !connected {
				connected = true
				onStatus(true, nil)
				s.deliver(ctx, userID, onSnapshot)
			}
		case *redis.Message:
			s.deliver(ctx, userID, onSnapshot)
		}
	}
}

func (s *Store) deliver(ctx context.Context, userID string, onSnapshot store.SnapshotFunc) {
	snap, err := s.Load(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("reloading after change", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	if snap == nil {
		snap = &store.Snapshot{Data: domain.UserData{}}
	}
	onSnapshot(*snap)
}
