// -----------------------------------------------------------------------
// Config Manager - layered configuration with hot reload
//
// Sources, in increasing precedence: YAML file, .env file, secrets
// directory, process environment, per-variable defaults (defaults apply
// only when a key is absent after the other sources).
// -----------------------------------------------------------------------

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

// Source identifies where a value came from, for status reporting.
type Source string

const (
	SourceYAML    Source = "yaml"
	SourceDotEnv  Source = "dotenv"
	SourceSecrets Source = "secrets"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
)

// Status is the observable state of the manager after the last load.
type Status struct {
	Loaded          bool      `json:"loaded"`
	LastReload      time.Time `json:"last_reload"`
	Sources         []string  `json:"sources"`
	MissingRequired []string  `json:"missing_required"`
	MissingOptional []string  `json:"missing_optional"`
	Warnings        []string  `json:"warnings"`
	Errors          []string  `json:"errors"`
	Watching        bool      `json:"watching"`
}

// Listener is invoked after each load attempt. Listeners run under the load
// lock and must not block or call back into the manager.
type Listener func(snapshot map[string]string)

// snapshot is the immutable result of one load. Readers access it through
// an atomic pointer so Get never blocks a concurrent load.
type snapshot struct {
	values  map[string]string
	origins map[string]Source
}

// Manager assembles the layered configuration described by the catalog.
type Manager struct {
	yamlPath   string
	envPath    string
	secretsDir string
	logger     arbor.ILogger
	validate   *validator.Validate
	catalog    []Variable

	current atomic.Pointer[snapshot]

	loadMu    sync.Mutex
	listeners []Listener
	status    Status

	watchStop   chan struct{}
	watchDone   chan struct{}
	lastHashes  map[string]string
	unknownSeen map[string]bool
}

// NewManager creates a manager for the given source paths. Empty paths
// disable that layer.
func NewManager(yamlPath, envPath, secretsDir string, logger arbor.ILogger) *Manager {
	m := &Manager{
		yamlPath:    yamlPath,
		envPath:     envPath,
		secretsDir:  secretsDir,
		logger:      logger,
		validate:    validator.New(),
		catalog:     Catalog,
		lastHashes:  make(map[string]string),
		unknownSeen: make(map[string]bool),
	}
	empty := &snapshot{values: map[string]string{}, origins: map[string]Source{}}
	m.current.Store(empty)
	return m
}

// Load reads every source, applies defaults, validates required variables
// and notifies listeners. Returns true iff no required variable is missing.
// A failed load leaves the previous snapshot in place.
func (m *Manager) Load() bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	next := &snapshot{
		values:  make(map[string]string),
		origins: make(map[string]Source),
	}
	status := Status{
		LastReload: time.Now(),
		Watching:   m.status.Watching,
	}

	// 1. YAML file
	if m.yamlPath != "" {
		if values, err := m.readYAML(m.yamlPath); err != nil {
			if !os.IsNotExist(err) {
				status.Warnings = append(status.Warnings, fmt.Sprintf("yaml: %v", err))
			}
		} else {
			m.merge(next, values, SourceYAML)
			status.Sources = append(status.Sources, string(SourceYAML))
		}
	}

	// 2. .env file
	if m.envPath != "" {
		if values, err := godotenv.Read(m.envPath); err != nil {
			if os.IsNotExist(err) {
				if werr := m.writeEnvTemplate(); werr != nil {
					status.Warnings = append(status.Warnings, fmt.Sprintf("env template: %v", werr))
				}
			} else {
				status.Warnings = append(status.Warnings, fmt.Sprintf("dotenv: %v", err))
			}
		} else {
			m.merge(next, values, SourceDotEnv)
			status.Sources = append(status.Sources, string(SourceDotEnv))
		}
	}

	// 3. Secrets directory: each file is one secret, filename uppercased
	// becomes the key.
	if m.secretsDir != "" {
		if values, err := m.readSecretsDir(m.secretsDir); err != nil {
			if !os.IsNotExist(err) {
				status.Warnings = append(status.Warnings, fmt.Sprintf("secrets: %v", err))
			}
		} else if len(values) > 0 {
			m.merge(next, values, SourceSecrets)
			status.Sources = append(status.Sources, string(SourceSecrets))
		}
	}

	// 4. Process environment (catalog keys only)
	envHit := false
	for _, v := range m.catalog {
		if value, ok := os.LookupEnv(v.Name); ok {
			next.values[v.Name] = value
			next.origins[v.Name] = SourceEnv
			envHit = true
		}
	}
	if envHit {
		status.Sources = append(status.Sources, string(SourceEnv))
	}

	// 5. Defaults, then required/optional accounting and validation.
	for _, v := range m.catalog {
		value, present := next.values[v.Name]
		if !present || value == "" {
			if v.Default != "" {
				next.values[v.Name] = v.Default
				next.origins[v.Name] = SourceDefault
				continue
			}
			if v.Required {
				status.MissingRequired = append(status.MissingRequired, v.Name)
				status.Errors = append(status.Errors, fmt.Sprintf("required variable %s is missing", v.Name))
			} else {
				status.MissingOptional = append(status.MissingOptional, v.Name)
			}
			continue
		}
		if v.Validate != "" {
			if err := m.validate.Var(value, v.Validate); err != nil {
				status.Warnings = append(status.Warnings, fmt.Sprintf("%s: value %q fails %q", v.Name, maskIfSecret(v, value), v.Validate))
			}
		}
	}

	ok := len(status.MissingRequired) == 0
	status.Loaded = ok

	if ok {
		m.current.Store(next)
	} else {
		m.logger.Error().
			Strs("missing", status.MissingRequired).
			Msg("Config load failed, keeping previous configuration")
	}
	m.status = status

	// Listeners are notified even on failure so downstream components can
	// re-evaluate their health.
	notified := m.current.Load().values
	for _, l := range m.listeners {
		l(notified)
	}

	return ok
}

// Reload re-runs Load.
func (m *Manager) Reload() bool {
	return m.Load()
}

// Get returns the value for key, falling back to def when absent. Lock-free
// with respect to Load.
func (m *Manager) Get(key, def string) string {
	snap := m.current.Load()
	if v, ok := snap.values[key]; ok && v != "" {
		return v
	}
	return def
}

// GetInt returns the value parsed as an integer, or def.
func (m *Manager) GetInt(key string, def int) int {
	if v := m.Get(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetBool returns the value parsed as a boolean, or def.
func (m *Manager) GetBool(key string, def bool) bool {
	if v := m.Get(key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// GetDuration returns the value parsed as a duration, or def.
func (m *Manager) GetDuration(key string, def time.Duration) time.Duration {
	if v := m.Get(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// GetAll returns a copy of the current snapshot. Secret values are replaced
// with a mask when hideSecrets is set.
func (m *Manager) GetAll(hideSecrets bool) map[string]string {
	snap := m.current.Load()
	out := make(map[string]string, len(snap.values))
	for k, v := range snap.values {
		if hideSecrets {
			if def, ok := m.lookup(k); ok && def.Secret && v != "" {
				out[k] = "********"
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Origin reports which source a key's value came from.
func (m *Manager) Origin(key string) (Source, bool) {
	snap := m.current.Load()
	s, ok := snap.origins[key]
	return s, ok
}

// Status returns the observable state from the last load.
func (m *Manager) Status() Status {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.status
}

// AddListener registers a callback invoked after each load.
func (m *Manager) AddListener(l Listener) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// RemoveListeners drops all registered listeners.
func (m *Manager) RemoveListeners() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.listeners = nil
}

// DatabaseURL assembles the Postgres connection string from component keys.
// Credentials are embedded only when present.
func (m *Manager) DatabaseURL() string {
	host := m.Get("DB_HOST", "localhost")
	port := m.Get("DB_PORT", "5432")
	name := m.Get("DB_NAME", "garimpo")
	user := m.Get("DB_USER", "")
	pass := m.Get("DB_PASSWORD", "")
	sslmode := m.Get("DB_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=" + sslmode,
	}
	if user != "" {
		if pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// RedisURL assembles the key/value store address from component keys.
func (m *Manager) RedisURL() string {
	host := m.Get("REDIS_HOST", "localhost")
	port := m.Get("REDIS_PORT", "6379")
	db := m.Get("REDIS_DB", "0")
	pass := m.Get("REDIS_PASSWORD", "")

	u := url.URL{
		Scheme: "redis",
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   "/" + db,
	}
	if pass != "" {
		u.User = url.UserPassword("", pass)
	}
	return u.String()
}

// StartWatching polls the YAML and .env files by content hash every
// interval (≈2 s by convention) and reloads on change.
func (m *Manager) StartWatching(interval time.Duration) {
	m.loadMu.Lock()
	if m.watchStop != nil {
		m.loadMu.Unlock()
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	m.watchStop = make(chan struct{})
	m.watchDone = make(chan struct{})
	m.status.Watching = true
	stop := m.watchStop
	done := m.watchDone
	m.loadMu.Unlock()

	m.snapshotHashes()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if m.sourcesChanged() {
					m.logger.Info().Msg("Config source changed, reloading")
					m.Reload()
					m.snapshotHashes()
				}
			}
		}
	}()
}

// StopWatching halts the background poller.
func (m *Manager) StopWatching() {
	m.loadMu.Lock()
	stop, done := m.watchStop, m.watchDone
	m.watchStop, m.watchDone = nil, nil
	m.status.Watching = false
	m.loadMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// merge copies values into the snapshot, recording origin. Unknown keys are
// ignored and logged once.
func (m *Manager) merge(next *snapshot, values map[string]string, source Source) {
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if _, known := m.lookup(key); !known {
			if !m.unknownSeen[key] {
				m.unknownSeen[key] = true
				m.logger.Warn().
					Str("key", key).
					Str("source", string(source)).
					Msg("Ignoring unknown configuration variable")
			}
			continue
		}
		next.values[key] = v
		next.origins[key] = source
	}
}

// readYAML flattens a YAML document of scalar values into a string map.
func (m *Manager) readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int, int64, float64, bool:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out, nil
}

// readSecretsDir reads one secret per file; the uppercased filename is the
// key and the trimmed file content the value.
func (m *Manager) readSecretsDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			m.logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to read secret file")
			continue
		}
		out[strings.ToUpper(e.Name())] = strings.TrimSpace(string(data))
	}
	return out, nil
}

// snapshotHashes records content hashes of the watched files.
func (m *Manager) snapshotHashes() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	for _, path := range []string{m.yamlPath, m.envPath} {
		if path == "" {
			continue
		}
		m.lastHashes[path] = fileHash(path)
	}
}

// sourcesChanged reports whether any watched file's hash differs.
func (m *Manager) sourcesChanged() bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	for _, path := range []string{m.yamlPath, m.envPath} {
		if path == "" {
			continue
		}
		if fileHash(path) != m.lastHashes[path] {
			return true
		}
	}
	return false
}

func fileHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// lookup resolves a variable against this manager's catalog.
func (m *Manager) lookup(name string) (Variable, bool) {
	for _, v := range m.catalog {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func maskIfSecret(v Variable, value string) string {
	if v.Secret {
		return "********"
	}
	return value
}
