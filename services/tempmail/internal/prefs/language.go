package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// LanguageKey is the preference holding the UI language code
const LanguageKey = "preferredLanguage"

// Languages the UI is available in; the first one is the fallback
var Languages = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Russian,
	language.Chinese,
	language.Japanese,
	language.Korean,
	language.Arabic,
	language.Hindi,
	language.Bengali,
	language.Punjabi,
}

var (
	matcher = language.NewMatcher(Languages)

	// ErrUnsupportedLanguage is returned for codes outside Languages
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// localeVars are consulted in order, like a browser's language list
var localeVars = []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"}

// Language resolves the preferred UI language: the stored one, else the best
// match for the environment locale (which is then stored), else English.
// env is typically os.Getenv.
func Language(ctx context.Context, store Store, env func(string) string) (language.Tag, error) {
	stored, err := store.Get(ctx, LanguageKey)
	switch {
	case err == nil:
		if tag, ok := supported(stored); ok {
			return tag, nil
		}
	case !errors.Is(err, ErrNotFound):
		return language.English, err
	}

	wanted := environmentTags(env)
	if len(wanted) == 0 {
		return language.English, nil
	}

	match, _, confidence := matcher.Match(wanted...)
	if confidence == language.No {
		return language.English, nil
	}

	tag := baseOf(match)
	if err := store.Set(ctx, LanguageKey, tag.String()); err != nil {
		return tag, err
	}
	return tag, nil
}

// SetLanguage validates code and stores its base language
func SetLanguage(ctx context.Context, store Store, code string) (language.Tag, error) {
	tag, ok := supported(code)
	if !ok {
		return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	if err := store.Set(ctx, LanguageKey, tag.String()); err != nil {
		return language.Und, err
	}
	return tag, nil
}

func supported(code string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return language.Und, false
	}
	base := baseOf(tag)
	for _, l := range Languages {
		if l == base {
			return base, true
		}
	}
	return language.Und, false
}

func baseOf(tag language.Tag) language.Tag {
	b, _ := tag.Base()
	return language.Make(b.String())
}

// environmentTags turns POSIX locale values such as "fr_FR.UTF-8" or "de:en" into tags
func environmentTags(env func(string) string) []language.Tag {
	var tags []language.Tag
	for _, name := range localeVars {
		for _, value := range strings.Split(env(name), ":") {
			value, _, _ = strings.Cut(value, ".")
			value, _, _ = strings.Cut(value, "@")
			value = strings.ReplaceAll(strings.TrimSpace(value), "_", "-")
			if value == "" || value == "C" || value == "POSIX" {
				continue
			}
			if tag, err := language.Parse(value); err == nil {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
