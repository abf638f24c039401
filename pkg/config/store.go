package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// APIKeyEnv is the environment variable that always takes precedence over any
// persisted credential.
const APIKeyEnv = "DEEPSEEK_API_KEY"

// credentialProvider is the provider name used in credentials.toml.
const credentialProvider = "deepseek"

const reloadDebounce = 100 * time.Millisecond

// Key sources reported by Store.KeySource.
const (
	KeySourceEnv         = "env"
	KeySourceCredentials = "credentials"
	KeySourceConfig      = "config"
	KeySourceNone        = ""
)

// KeyStore persists the upstream credential. *credentials.Manager satisfies it.
type KeyStore interface {
	GetKey(provider string) (string, error)
	SetKey(provider, key string) error
	GetTarget() string
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Load produces the current Config. It is called once by NewStore and
	// again on every reload.
	Load func() (*Config, error)

	// Keys is the persisted credential store.
	Keys KeyStore

	// ConfigPath is the config.toml path to watch. Optional.
	ConfigPath string

	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	Logger *slog.Logger
}

// Store is the process-wide, read-mostly configuration shared by the
// upstream client and the gateway. Reads take a shared lock and return
// copies; credential updates and reloads take the exclusive lock so a reader
// never observes a partially applied change.
type Store struct {
	opts StoreOptions

	mu        sync.RWMutex
	cfg       *Config
	storedKey string
	watchers  []func(old, new Config)
}

// NewStore loads the initial configuration and persisted credential.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Load == nil {
		return nil, fmt.Errorf("config loader is required")
	}
	if opts.Keys == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{opts: opts}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// APIKey resolves the upstream credential: the environment variable first,
// then the persisted credential, then upstream.api_key from config.toml.
// Returns an empty string when no credential is configured.
func (s *Store) APIKey() string {
	key, _ := s.resolveKey()
	return key
}

// KeySource reports where APIKey resolved the credential from.
func (s *Store) KeySource() string {
	_, src := s.resolveKey()
	return src
}

func (s *Store) resolveKey() (string, string) {
	if key := s.opts.Getenv(APIKeyEnv); key != "" {
		return key, KeySourceEnv
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.storedKey != "" {
		return s.storedKey, KeySourceCredentials
	}
	if s.cfg.Upstream.APIKey != "" {
		return s.cfg.Upstream.APIKey, KeySourceConfig
	}
	return "", KeySourceNone
}

// SetAPIKey persists key to the credential store and makes it the active
// persisted credential. Concurrent calls are serialized and readers never see
// the new key before it has been written to disk.
func (s *Store) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.opts.Keys.SetKey(credentialProvider, key); err != nil {
		return fmt.Errorf("persisting api key: %w", err)
	}

	s.storedKey = key
	return nil
}

// EnvKeyOverrides reports whether the environment variable shadows any
// persisted credential.
func (s *Store) EnvKeyOverrides() bool {
	return s.opts.Getenv(APIKeyEnv) != ""
}

// OnChange registers a callback invoked after a reload changes the config.
func (s *Store) OnChange(fn func(old, new Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Reload re-reads the configuration and persisted credential, then notifies
// OnChange callbacks when the configuration differs.
func (s *Store) Reload() error {
	cfg, err := s.opts.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The credential is read under the write lock so a concurrent SetAPIKey
	// cannot be overwritten with the value it replaced.
	s.mu.Lock()
	key, err := s.opts.Keys.GetKey(credentialProvider)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("loading credentials: %w", err)
	}

	var old *Config
	if s.cfg != nil {
		prev := *s.cfg
		old = &prev
	}
	s.cfg = cfg
	s.storedKey = key
	watchers := make([]func(old, new Config), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	if old == nil || reflect.DeepEqual(*old, *cfg) {
		return nil
	}

	for _, cb := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.opts.Logger.Error("config change callback panicked", "panic", r)
				}
			}()
			cb(*old, *cfg)
		}()
	}

	return nil
}

// Watch reloads the Store whenever config.toml or credentials.toml change on
// disk. Events are debounced. Watch returns once the watcher is running; it
// stops when ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watched := map[string]bool{}
	for _, p := range []string{s.opts.ConfigPath, s.opts.Keys.GetTarget()} {
		if p != "" {
			watched[filepath.Clean(p)] = true
		}
	}
	if len(watched) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch parent directories: editors replace files by rename, which
	// drops a watch placed on the file itself.
	dirs := map[string]bool{}
	for p := range watched {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}

	go s.watchLoop(ctx, w, watched)

	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, watched map[string]bool) {
	defer w.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					s.opts.Logger.Warn("config reload failed", "error", err)
					return
				}
				s.opts.Logger.Info("config reloaded", "file", ev.Name)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.opts.Logger.Warn("config watcher error", "error", err)
		}
	}
}
