package translator

// Translator returns the display text for a message key in the requested language.
// Unknown languages fall back to the translator's default language.
type Translator interface {
	Translate(lang string, key string) string
}

// Message keys used by the service.
const (
	KeyTypeNoneLabel = "Users with no type set"
	KeyNoTypes       = "No types fetched."
)
