// Package prefs holds user preferences. The only one today is the
// interface language, which is either Chinese or English.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/language"
)

// LanguageKey is the store key of the language preference.
const LanguageKey = "preferredLanguage"

// Language is an interface language.
type Language string

const (
	Chinese Language = "zh"
	English Language = "en"
)

// DefaultLanguage is used when nothing is stored or matching fails.
const DefaultLanguage = Chinese

// Tag returns the BCP 47 tag of the language.
func (l Language) Tag() language.Tag {
	if l == Chinese {
		return language.Chinese
	}
	return language.English
}

// Toggle returns the other language.
func (l Language) Toggle() Language {
	if l == Chinese {
		return English
	}
	return Chinese
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Chinese})

// ParseLanguage maps any BCP 47 tag onto zh or en, e.g. "zh-CN" -> zh,
// "en-GB" -> en. Unrelated but well-formed tags match English. Malformed
// input is an error.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	_, idx, _ := matcher.Match(tag)
	if idx == 1 {
		return Chinese, nil
	}
	return English, nil
}

// ErrNotFound is returned by Store.Get for a missing key.
var ErrNotFound = errors.New("preference not found")

// Store is a small key/value store.
// Implemented by MemoryStore (tests) and store.Store (SQLite).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// LoadLanguage reads the stored language. A missing or unreadable value
// yields DefaultLanguage.
func LoadLanguage(ctx context.Context, s Store) (Language, error) {
	v, err := s.Get(ctx, LanguageKey)
	if errors.Is(err, ErrNotFound) {
		return DefaultLanguage, nil
	}
	if err != nil {
		return DefaultLanguage, fmt.Errorf("load language: %w", err)
	}
	switch Language(v) {
	case Chinese, English:
		return Language(v), nil
	}
	return DefaultLanguage, nil
}

// SaveLanguage stores l.
func SaveLanguage(ctx context.Context, s Store, l Language) error {
	if l != Chinese && l != English {
		return fmt.Errorf("save language: unsupported language %q", l)
	}
	if err := s.Set(ctx, LanguageKey, string(l)); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store.
//
// Thread-safety: safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
