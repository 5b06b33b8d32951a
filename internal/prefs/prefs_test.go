package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
	}{
		{"zh", Chinese},
		{"zh-CN", Chinese},
		{"zh-Hans", Chinese},
		{"en", English},
		{"en-GB", English},
		{"fr", English},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLanguage("not a tag!")
	assert.Error(t, err)
}

func TestLanguage_TagAndToggle(t *testing.T) {
	assert.Equal(t, language.Chinese, Chinese.Tag())
	assert.Equal(t, language.English, English.Tag())
	assert.Equal(t, English, Chinese.Toggle())
	assert.Equal(t, Chinese, English.Toggle())
}

func TestLoadLanguage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := LoadLanguage(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, got, "nothing stored")

	require.NoError(t, SaveLanguage(ctx, s, English))
	got, err = LoadLanguage(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, English, got)

	v, err := s.Get(ctx, "preferredLanguage")
	require.NoError(t, err)
	assert.Equal(t, "en", v)

	require.NoError(t, s.Set(ctx, LanguageKey, "klingon"))
	got, err = LoadLanguage(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, got, "garbage falls back")
}

func TestSaveLanguage_RejectsUnknown(t *testing.T) {
	assert.Error(t, SaveLanguage(context.Background(), NewMemoryStore(), Language("fr")))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("boom") }
func (failingStore) Set(context.Context, string, string) error   { return errors.New("boom") }

func TestLoadLanguage_StoreError(t *testing.T) {
	got, err := LoadLanguage(context.Background(), failingStore{})

	assert.Error(t, err)
	assert.Equal(t, DefaultLanguage, got)
	assert.Error(t, SaveLanguage(context.Background(), failingStore{}, Chinese))
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
