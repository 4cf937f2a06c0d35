package classifier

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-support-backend/internal/config"
)

// New selects and builds the classifier for the given AI configuration.
//
// Selection rules:
//   - cfg.Classifier forces a specific implementation ("remote", "keyword",
//     "reference"); "auto" applies the credential-based default below.
//   - In auto mode, a non-blank API key for the configured provider selects
//     the remote classifier; no key selects the reference classifier.
//   - When the remote classifier cannot be constructed, the reference
//     classifier is used instead. New never fails; the caller always gets a
//     working classifier.
//
// New is a pure function of cfg plus an optional lexicon file read; it never
// consults the environment directly.
func New(cfg config.AIConfig) Classifier {
	lex := DefaultLexicon()
	if cfg.LexiconPath != "" {
		loaded, err := LoadLexicon(cfg.LexiconPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.LexiconPath).Msg("keyword lexicon not loaded, using built-in defaults")
		} else {
			lex = loaded
		}
	}

	switch cfg.Classifier {
	case "keyword":
		log.Info().Msg("using keyword classifier")
		return NewKeywordClassifier(lex)
	case "reference":
		log.Info().Msg("using reference classifier")
		return NewReferenceClassifier()
	case "remote":
		return newRemoteOrReference(cfg, lex)
	}

	// auto: remote when a credential is configured, reference otherwise.
	if !hasCredential(cfg) {
		log.Info().Str("provider", cfg.Provider).Msg("no api key configured, using reference classifier")
		return NewReferenceClassifier()
	}
	return newRemoteOrReference(cfg, lex)
}

func newRemoteOrReference(cfg config.AIConfig, lex *Lexicon) Classifier {
	remote, err := NewRemoteClassifier(cfg, lex)
	if err != nil {
		log.Warn().Err(err).Msg("remote classifier unavailable, using reference classifier")
		return NewReferenceClassifier()
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("using remote classifier")
	return remote
}

func hasCredential(cfg config.AIConfig) bool {
	switch cfg.Provider {
	case "anthropic":
		return strings.TrimSpace(cfg.AnthropicAPIKey) != ""
	default:
		return strings.TrimSpace(cfg.OpenAIAPIKey) != ""
	}
}
