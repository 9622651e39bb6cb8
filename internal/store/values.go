package store

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/errors"
	"github.com/hpungsan/varloom/internal/variable"
)

// loadChatLocked returns the cached chat document, loading it on first
// reference. A read failure degrades to an empty document (logged); orphaned
// values whose definition no longer exists are swept here, which is how
// cascade deletes reach documents that were unloadable at deletion time.
func (s *Store) loadChatLocked(chatID string) *chatDoc {
	if doc, ok := s.chats[chatID]; ok {
		return doc
	}

	doc := &chatDoc{ChatID: chatID, Values: make(map[string]*variable.Value)}
	data, found, err := s.backend.Get(chatPrefix + chatID)
	if err != nil {
		log.Error().Err(err).Str("chat", chatID).Msg("store: chat read failed, starting from empty document")
	} else if found {
		if err := json.Unmarshal(data, doc); err != nil {
			log.Error().Err(err).Str("chat", chatID).Msg("store: chat document malformed, starting from empty document")
			doc = &chatDoc{ChatID: chatID, Values: make(map[string]*variable.Value)}
		}
		if doc.Values == nil {
			doc.Values = make(map[string]*variable.Value)
		}
		doc.ChatID = chatID
	}

	// Orphan sweep: values for definitions deleted while this chat was
	// not loaded.
	for defID := range doc.Values {
		if _, ok := s.root.Variables[defID]; !ok {
			log.Info().Str("chat", chatID).Str("variable", defID).Msg("store: sweeping orphaned value")
			delete(doc.Values, defID)
			s.markChatDirty(chatID)
		}
	}

	s.chats[chatID] = doc
	return doc
}

// WarmChat preloads a chat document into the cache so that subsequent
// synchronous CachedValue calls can serve it. Call before registering
// macro resolvers for a chat.
func (s *Store) WarmChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadChatLocked(chatID)
}

// Value returns a copy of one variable's value in a chat, loading the chat
// document if needed.
func (s *Store) Value(chatID, defID string) (variable.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.loadChatLocked(chatID)
	v, ok := doc.Values[defID]
	if !ok {
		return variable.Value{}, false
	}
	return cloneValue(v), true
}

// CachedValue is the synchronous accessor for macro resolution: it never
// touches the backend. A chat that was not warmed reads as empty; warm the
// cache proactively before use.
func (s *Store) CachedValue(chatID, defID string) (variable.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.chats[chatID]
	if !ok {
		log.Debug().Str("chat", chatID).Msg("store: cache miss on cold chat")
		return variable.Value{}, false
	}
	v, ok := doc.Values[defID]
	if !ok {
		return variable.Value{}, false
	}
	return cloneValue(v), true
}

// ApplyValue records one parsed tag result against a definition: stack
// mode appends an entry, replace mode overwrites the current value while
// pushing the old one to history.
func (s *Store) ApplyValue(chatID string, def variable.Definition, content, floorRange string) (variable.Entry, error) {
	if !def.Mode.Valid() {
		return variable.Entry{}, errors.NewInvalidRequest("mode must be one of: stack, replace")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.root.Variables[def.ID]; !ok {
		return variable.Entry{}, errors.NewNotFound("variable", def.ID)
	}

	doc := s.loadChatLocked(chatID)
	v, ok := doc.Values[def.ID]
	if !ok {
		v = &variable.Value{}
		doc.Values[def.ID] = v
	}

	var entry variable.Entry
	if def.Mode == variable.ModeStack {
		entry = v.AppendEntry(content, floorRange, s.now())
	} else {
		v.Overwrite(content, floorRange, s.now())
		entry = variable.Entry{Content: content, FloorRange: floorRange, Timestamp: s.now().Unix()}
	}
	s.markChatDirty(chatID)
	return entry, nil
}

// HideEntry soft-deletes a stack entry. Ids of other entries never change.
func (s *Store) HideEntry(chatID, defID string, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadChatLocked(chatID)
	v, ok := doc.Values[defID]
	if !ok {
		return errors.NewNotFound("value", defID)
	}
	if !v.Hide(entryID) {
		return errors.NewNotFound("entry", defID)
	}
	s.markChatDirty(chatID)
	return nil
}

// SetHistoryIndex moves the replace-mode history cursor. -1 means "viewing
// current"; the cursor does not persist across new overwrites.
func (s *Store) SetHistoryIndex(chatID, defID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadChatLocked(chatID)
	v, ok := doc.Values[defID]
	if !ok {
		return errors.NewNotFound("value", defID)
	}
	if index < -1 || index >= len(v.History) {
		return errors.NewInvalidRequest("history index out of range")
	}
	v.HistoryIndex = index
	s.markChatDirty(chatID)
	return nil
}

// Chats lists every chat id with a persisted value document.
func (s *Store) Chats() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.List(chatPrefix)
	if err != nil {
		return nil, errors.NewStorage("list chats", err)
	}
	ids := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		id := key[len(chatPrefix):]
		seen[id] = true
		ids = append(ids, id)
	}
	// Include cached-but-unflushed chats.
	for id := range s.chats {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func cloneValue(v *variable.Value) variable.Value {
	out := *v
	out.Entries = append([]variable.Entry(nil), v.Entries...)
	out.History = append([]variable.Entry(nil), v.History...)
	return out
}
