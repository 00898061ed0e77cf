package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func envOf(vars map[string]string) func(string) string {
	return func(name string) string {
		return vars[name]
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func TestLanguage_StoredValueWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, LanguageKey, "ko"))

	tag, err := Language(ctx, store, envOf(map[string]string{"LANG": "fr_FR.UTF-8"}))

	require.NoError(t, err)
	assert.Equal(t, language.Korean, tag)
}

func TestLanguage_DetectsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tag, err := Language(ctx, store, envOf(map[string]string{"LANG": "pt_BR.UTF-8"}))

	require.NoError(t, err)
	assert.Equal(t, language.Portuguese, tag)

	stored, err := store.Get(ctx, LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "pt", stored)
}

func TestLanguage_PriorityList(t *testing.T) {
	ctx := context.Background()

	tag, err := Language(ctx, NewMemoryStore(), envOf(map[string]string{
		"LANGUAGE": "tlh:de:en",
		"LANG":     "es_ES.UTF-8",
	}))

	require.NoError(t, err)
	assert.Equal(t, language.German, tag)
}

func TestLanguage_Fallback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, env := range []map[string]string{
		{},
		{"LANG": "C"},
		{"LC_ALL": "POSIX"},
	} {
		tag, err := Language(ctx, store, envOf(env))
		require.NoError(t, err)
		assert.Equal(t, language.English, tag)
	}

	_, err := store.Get(ctx, LanguageKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLanguage_UnsupportedStoredValueIsRedetected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, LanguageKey, "not a language"))

	tag, err := Language(ctx, store, envOf(map[string]string{"LC_MESSAGES": "it_IT"}))

	require.NoError(t, err)
	assert.Equal(t, language.Italian, tag)
}

func TestLanguage_StoreError(t *testing.T) {
	tag, err := Language(context.Background(), failingStore{}, envOf(nil))

	assert.Error(t, err)
	assert.Equal(t, language.English, tag)
}

func TestSetLanguage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tag, err := SetLanguage(ctx, store, "zh-Hant-TW")
	require.NoError(t, err)
	assert.Equal(t, language.Chinese, tag)

	stored, err := store.Get(ctx, LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "zh", stored)

	_, err = SetLanguage(ctx, store, "sw")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = SetLanguage(ctx, store, "")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	stored, _ = store.Get(ctx, LanguageKey)
	assert.Equal(t, "zh", stored)
}

func TestEnvironmentTags(t *testing.T) {
	tags := environmentTags(envOf(map[string]string{
		"LANGUAGE": "fr_CA:en",
		"LANG":     "de_DE.UTF-8@euro",
	}))

	require.Len(t, tags, 3)
	assert.Equal(t, language.MustParse("fr-CA"), tags[0])
	assert.Equal(t, language.English, tags[1])
	assert.Equal(t, language.MustParse("de-DE"), tags[2])
}
