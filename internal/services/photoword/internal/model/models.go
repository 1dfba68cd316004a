package model

import (
	"strings"
	"time"
)

type PartOfSpeech string

const (
	Noun      PartOfSpeech = "noun"
	Verb      PartOfSpeech = "verb"
	Adjective PartOfSpeech = "adjective"
	Adverb    PartOfSpeech = "adverb"
)

// PartsOfSpeech lists the accepted values in prompt order.
var PartsOfSpeech = []PartOfSpeech{Noun, Verb, Adjective, Adverb}

func (p PartOfSpeech) Valid() bool {
	switch p {
	case Noun, Verb, Adjective, Adverb:
		return true
	}
	return false
}

var posLabels = map[PartOfSpeech][]string{
	Noun:      {"noun", "n", "sustantivo", "nombre", "名詞"},
	Verb:      {"verb", "v", "verbo", "動詞"},
	Adjective: {"adjective", "adj", "adjetivo", "形容詞"},
	Adverb:    {"adverb", "adv", "adverbio", "副詞"},
}

var posAliases = func() map[string]PartOfSpeech {
	m := make(map[string]PartOfSpeech)
	for pos, labels := range posLabels {
		for _, l := range labels {
			m[l] = pos
		}
	}
	return m
}()

// ParsePartOfSpeech folds case, whitespace and trailing dots and resolves the
// common English, Spanish and Japanese labels models tend to produce.
func ParsePartOfSpeech(s string) (PartOfSpeech, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimSuffix(key, ".")
	pos, ok := posAliases[key]
	return pos, ok
}

// VocabularyItem is one word extracted from a photo.
type VocabularyItem struct {
	Word            string
	PartOfSpeech    PartOfSpeech
	Translation     string
	ExampleSentence string
}

// Valid reports whether all four fields are present and the part of speech is known.
func (v VocabularyItem) Valid() bool {
	return strings.TrimSpace(v.Word) != "" &&
		strings.TrimSpace(v.Translation) != "" &&
		strings.TrimSpace(v.ExampleSentence) != "" &&
		v.PartOfSpeech.Valid()
}

// Normalize trims the text fields and resolves the part of speech. The second
// return value is false when the item cannot be made valid.
func (v VocabularyItem) Normalize() (VocabularyItem, bool) {
	pos, ok := ParsePartOfSpeech(string(v.PartOfSpeech))
	if !ok {
		return VocabularyItem{}, false
	}

	out := VocabularyItem{
		Word:            strings.TrimSpace(v.Word),
		PartOfSpeech:    pos,
		Translation:     strings.TrimSpace(v.Translation),
		ExampleSentence: strings.TrimSpace(v.ExampleSentence),
	}
	return out, out.Valid()
}

type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

type StoredImage struct {
	ID        int64
	OwnerID   int64
	Data      []byte
	Digest    string
	CreatedAt time.Time
}

type VocabularyEntry struct {
	VocabularyItem
	ID        int64
	OwnerID   int64
	ImageID   int64
	CreatedAt time.Time
}

// TimelineEntry is one stored image together with all of its vocabulary.
type TimelineEntry struct {
	ID         int64
	CreatedAt  time.Time
	Image      []byte
	Vocabulary []VocabularyEntry
}

type ProgressStatus string

const (
	Unlearned   ProgressStatus = "unlearned"
	Learning    ProgressStatus = "learning"
	Mastered    ProgressStatus = "mastered"
	NeedsReview ProgressStatus = "needs_review"
)

func (s ProgressStatus) Valid() bool {
	switch s {
	case Unlearned, Learning, Mastered, NeedsReview:
		return true
	}
	return false
}

type Progress struct {
	ID           int64
	OwnerID      int64
	VocabularyID int64
	Status       ProgressStatus
	LastReviewed time.Time
}
