package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	// DefaultHashingDimensions is the vector width of the hashing provider.
	DefaultHashingDimensions = 1024

	hashingModelPrefix = "hashing-bow-v1"
)

// stopwords are dropped before hashing so that function words do not
// dominate short queries.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"what": {}, "when": {}, "which": {}, "with": {},
}

// HashingProvider is a deterministic, in-process bag-of-words encoder based
// on feature hashing. It needs no model download and no fitting pass, so a
// text always maps to the same vector regardless of the rest of the corpus.
type HashingProvider struct {
	dimensions int
}

// NewHashingProvider creates a hashing provider. dims <= 0 selects
// DefaultHashingDimensions.
func NewHashingProvider(dims int) *HashingProvider {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingProvider{dimensions: dims}
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit, dropping stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Embed hashes each token into a signed bucket and L2-normalizes the result.
func (p *HashingProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return Embedding{}, err
	}

	vec := make([]float32, p.dimensions)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimensions))
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	return Embedding{Vector: Normalize(vec)}, nil
}

// ModelName identifies the hashing scheme and width, so indexes built with a
// different width are rejected at load time.
func (p *HashingProvider) ModelName() string {
	return fmt.Sprintf("%s-%d", hashingModelPrefix, p.dimensions)
}

// Dimensions returns the vector width.
func (p *HashingProvider) Dimensions() int {
	return p.dimensions
}
