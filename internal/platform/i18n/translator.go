package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/translator"
)

var translations = map[language.Tag]map[string]string{
	language.English: {
		translator.KeyTypeNoneLabel: "Users with no type set",
		translator.KeyNoTypes:       "No types fetched.",
	},
	language.Spanish: {
		translator.KeyTypeNoneLabel: "Usuarios sin tipo asignado",
		translator.KeyNoTypes:       "No se obtuvieron tipos.",
	},
	language.French: {
		translator.KeyTypeNoneLabel: "Utilisateurs sans type défini",
		translator.KeyNoTypes:       "Aucun type récupéré.",
	},
	language.German: {
		translator.KeyTypeNoneLabel: "Benutzer ohne festgelegten Typ",
		translator.KeyNoTypes:       "Keine Typen gefunden.",
	},
}

// Translator implements translator.Translator over an x/text message catalog.
// lang is matched like an Accept-Language header value.
type Translator struct {
	cat     *catalog.Builder
	matcher language.Matcher
}

func New(defaultLang string) (*Translator, error) {
	def := language.English
	if defaultLang != "" {
		tag, err := language.Parse(defaultLang)
		if err != nil {
			return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
		}
		def = tag
	}

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, text := range msgs {
			if err := b.SetString(tag, key, text); err != nil {
				return nil, err
			}
		}
	}

	supported := []language.Tag{def}
	for tag := range translations {
		if tag != def {
			supported = append(supported, tag)
		}
	}
	return &Translator{cat: b, matcher: language.NewMatcher(supported)}, nil
}

func (t *Translator) Translate(lang string, key string) string {
	tag, _ := language.MatchStrings(t.matcher, lang)
	p := message.NewPrinter(tag, message.Catalog(t.cat))
	return p.Sprintf(key)
}
