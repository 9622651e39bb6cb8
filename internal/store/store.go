// Package store is the versioned persistence layer: variable definitions,
// suites, settings, and per-chat value histories, cached in memory with
// debounced write-back to a kv backend.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/errors"
	"github.com/hpungsan/varloom/internal/kv"
	"github.com/hpungsan/varloom/internal/variable"
)

const (
	rootKey    = "root"
	chatPrefix = "chat/"

	// RootVersion is the current root document schema version.
	// Version 2 supersedes the earlier flat schema without suites.
	RootVersion = 2

	// DefaultDebounce coalesces bursts of mutations into one write.
	DefaultDebounce = 800 * time.Millisecond
)

// rootDoc is the per-installation root document.
type rootDoc struct {
	Version   int                            `json:"version"`
	Suites    map[string]variable.Suite      `json:"suites"`
	Variables map[string]variable.Definition `json:"variables"`
	Settings  variable.Settings              `json:"settings"`
}

// chatDoc is one chat's value document, loaded lazily and flushed
// independently of the root.
type chatDoc struct {
	ChatID string                     `json:"chatId"`
	Values map[string]*variable.Value `json:"values"`
}

// Store caches all documents in memory. Each logical document is loaded at
// most once per session; every mutation marks it dirty and arms a debounced
// flush. The caches are the only shared mutable state, and the Store's
// methods are the sole writers.
type Store struct {
	mu       sync.Mutex
	backend  kv.Store
	debounce time.Duration
	now      func() time.Time

	root      *rootDoc
	rootDirty bool

	chats     map[string]*chatDoc
	chatDirty map[string]bool

	timer  *time.Timer
	closed bool
}

// Open loads the root document (migrating old schema versions one-way) and
// returns a ready store. A read failure falls back to an empty default
// document so the session can continue; only a root document with a schema
// version newer than this build is rejected.
func Open(backend kv.Store, debounce time.Duration) (*Store, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	s := &Store{
		backend:   backend,
		debounce:  debounce,
		now:       time.Now,
		chats:     make(map[string]*chatDoc),
		chatDirty: make(map[string]bool),
	}

	root, dirty, err := loadRoot(backend)
	if err != nil {
		return nil, err
	}
	s.root = root
	if dirty {
		// Migration happened; persist the upgraded document right away.
		s.rootDirty = true
		s.flushLocked()
	}
	return s, nil
}

// loadRoot reads and, if needed, migrates the root document.
// dirty reports that a migration changed the document shape.
func loadRoot(backend kv.Store) (*rootDoc, bool, error) {
	data, found, err := backend.Get(rootKey)
	if err != nil {
		log.Error().Err(err).Msg("store: root read failed, starting from empty document")
		return emptyRoot(), false, nil
	}
	if !found {
		return emptyRoot(), false, nil
	}

	var doc rootDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Error().Err(err).Msg("store: root document malformed, starting from empty document")
		return emptyRoot(), false, nil
	}

	if doc.Version > RootVersion {
		return nil, false, errors.NewBadDocument(rootKey, fmt.Sprintf("unsupported version %d", doc.Version))
	}

	dirty := false
	if doc.Version < RootVersion {
		// v1 was a flat document with variables and settings but no
		// suites. The v2 shape is a superset, so migration is filling
		// in what v1 lacked and stamping the new version. One-way; the
		// old shape is never written again.
		log.Info().Int("from", doc.Version).Int("to", RootVersion).Msg("store: migrating root document")
		doc.Version = RootVersion
		dirty = true
	}
	if doc.Suites == nil {
		doc.Suites = make(map[string]variable.Suite)
	}
	if doc.Variables == nil {
		doc.Variables = make(map[string]variable.Definition)
	}
	return &doc, dirty, nil
}

func emptyRoot() *rootDoc {
	return &rootDoc{
		Version:   RootVersion,
		Suites:    make(map[string]variable.Suite),
		Variables: make(map[string]variable.Definition),
	}
}

// Close flushes pending writes and releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.flushLocked()
	s.mu.Unlock()
	return s.backend.Close()
}

// Flush forces all dirty documents to the backend immediately.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.flushLocked()
}

// SetDebounce changes the write-coalescing delay for future mutations. A
// timer already armed keeps its old deadline.
func (s *Store) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = d
}

// Reset drops every in-memory cache. The next access reloads from the
// backend. Pending writes are flushed first so nothing is lost.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	root, _, err := loadRoot(s.backend)
	if err == nil {
		s.root = root
	}
	s.chats = make(map[string]*chatDoc)
	s.chatDirty = make(map[string]bool)
}

// markRootDirty and markChatDirty arm the debounced flush.
func (s *Store) markRootDirty() {
	s.rootDirty = true
	s.armTimerLocked()
}

func (s *Store) markChatDirty(chatID string) {
	s.chatDirty[chatID] = true
	s.armTimerLocked()
}

func (s *Store) armTimerLocked() {
	if s.closed {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.debouncedFlush)
		return
	}
	// Reset on each new mutation: a burst of edits produces one write.
	s.timer.Reset(s.debounce)
}

func (s *Store) debouncedFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	s.flushLocked()
}

// flushLocked writes every dirty document. A failed write keeps its dirty
// flag so a later flush retries.
func (s *Store) flushLocked() {
	if s.rootDirty {
		if err := s.putJSON(rootKey, s.root); err != nil {
			log.Error().Err(err).Msg("store: root write failed, will retry")
		} else {
			s.rootDirty = false
		}
	}
	for chatID := range s.chatDirty {
		doc, ok := s.chats[chatID]
		if !ok {
			delete(s.chatDirty, chatID)
			continue
		}
		if err := s.putJSON(chatPrefix+chatID, doc); err != nil {
			log.Error().Err(err).Str("chat", chatID).Msg("store: chat write failed, will retry")
		} else {
			delete(s.chatDirty, chatID)
		}
	}
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.backend.Put(key, data)
}

// Settings returns the settings block of the root document.
func (s *Store) Settings() variable.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Settings
}

// SetSettings replaces the settings block.
func (s *Store) SetSettings(settings variable.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.Settings = settings
	s.markRootDirty()
}

// Definitions returns all variable definitions sorted by name.
func (s *Store) Definitions() []variable.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := make([]variable.Definition, 0, len(s.root.Variables))
	for _, d := range s.root.Variables {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Definition returns one definition by id.
func (s *Store) Definition(id string) (variable.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.root.Variables[id]
	return d, ok
}

// DefinitionByName returns one definition by macro-reference name.
func (s *Store) DefinitionByName(name string) (variable.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.root.Variables {
		if d.Name == name {
			return d, true
		}
	}
	return variable.Definition{}, false
}

// PutDefinition creates or updates a definition. Names stay unique across
// definitions because they are the macro namespace.
func (s *Store) PutDefinition(def variable.Definition) error {
	if def.ID == "" {
		return errors.NewInvalidRequest("definition id is required")
	}
	if def.Name == "" {
		return errors.NewInvalidRequest("definition name is required")
	}
	if def.BareTag() == "" {
		return errors.NewInvalidRequest("definition tag is required")
	}
	if !def.Mode.Valid() {
		return errors.NewInvalidRequest("mode must be one of: stack, replace")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.root.Variables {
		if existing.Name == def.Name && existing.ID != def.ID {
			return errors.NewNameExists(def.Name)
		}
	}
	s.root.Variables[def.ID] = def
	s.markRootDirty()
	return nil
}

// DeleteDefinition removes a definition and cascades to its stored values
// in every chat document. Chats that fail to load now are swept on their
// next load instead of blocking the deletion.
func (s *Store) DeleteDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.root.Variables[id]; !ok {
		return errors.NewNotFound("variable", id)
	}
	delete(s.root.Variables, id)
	s.markRootDirty()

	// Cached chats first.
	for chatID, doc := range s.chats {
		if _, ok := doc.Values[id]; ok {
			delete(doc.Values, id)
			s.markChatDirty(chatID)
		}
	}

	// Then every persisted chat document not yet in cache.
	keys, err := s.backend.List(chatPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("store: chat scan failed during cascade delete; orphans sweep on next load")
		return nil
	}
	for _, key := range keys {
		chatID := key[len(chatPrefix):]
		if _, cached := s.chats[chatID]; cached {
			continue
		}
		doc := s.loadChatLocked(chatID)
		if _, ok := doc.Values[id]; ok {
			delete(doc.Values, id)
			s.markChatDirty(chatID)
		}
	}
	return nil
}

// Suites returns all suites sorted by name.
func (s *Store) Suites() []variable.Suite {
	s.mu.Lock()
	defer s.mu.Unlock()
	suites := make([]variable.Suite, 0, len(s.root.Suites))
	for _, st := range s.root.Suites {
		suites = append(suites, st)
	}
	sort.Slice(suites, func(i, j int) bool { return suites[i].Name < suites[j].Name })
	return suites
}

// Suite returns one suite by id.
func (s *Store) Suite(id string) (variable.Suite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.root.Suites[id]
	return st, ok
}

// SuiteByName returns one suite by name.
func (s *Store) SuiteByName(name string) (variable.Suite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.root.Suites {
		if st.Name == name {
			return st, true
		}
	}
	return variable.Suite{}, false
}

// PutSuite creates or updates a suite, stamping UpdatedAt (and CreatedAt
// for new suites).
func (s *Store) PutSuite(suite variable.Suite) error {
	if suite.ID == "" {
		return errors.NewInvalidRequest("suite id is required")
	}
	if suite.Name == "" {
		return errors.NewInvalidRequest("suite name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Unix()
	if existing, ok := s.root.Suites[suite.ID]; ok {
		suite.CreatedAt = existing.CreatedAt
	} else {
		suite.CreatedAt = now
	}
	suite.UpdatedAt = now
	s.root.Suites[suite.ID] = suite
	s.markRootDirty()
	return nil
}

// DeleteSuite removes a suite. Stored values are untouched: they belong to
// definitions, not suites.
func (s *Store) DeleteSuite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.root.Suites[id]; !ok {
		return errors.NewNotFound("suite", id)
	}
	delete(s.root.Suites, id)
	s.markRootDirty()
	return nil
}
