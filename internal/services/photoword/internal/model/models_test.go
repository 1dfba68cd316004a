package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePartOfSpeech(t *testing.T) {
	tbl := []struct {
		in  string
		out PartOfSpeech
		ok  bool
	}{
		{"noun", Noun, true},
		{" Noun ", Noun, true},
		{"名詞", Noun, true},
		{"sustantivo", Noun, true},
		{"VERB", Verb, true},
		{"動詞", Verb, true},
		{"adj.", Adjective, true},
		{"形容詞", Adjective, true},
		{"adverbio", Adverb, true},
		{"副詞", Adverb, true},
		{"preposition", "", false},
		{"", "", false},
	}

	for _, c := range tbl {
		pos, ok := ParsePartOfSpeech(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.out, pos, c.in)
	}
}

func TestVocabularyItem_Normalize(t *testing.T) {
	item, ok := VocabularyItem{
		Word:            "  mesa ",
		PartOfSpeech:    "名詞",
		Translation:     " テーブル",
		ExampleSentence: "La mesa es grande. ",
	}.Normalize()

	assert.True(t, ok)
	assert.Equal(t, VocabularyItem{
		Word:            "mesa",
		PartOfSpeech:    Noun,
		Translation:     "テーブル",
		ExampleSentence: "La mesa es grande.",
	}, item)
}

func TestVocabularyItem_NormalizeRejects(t *testing.T) {
	valid := VocabularyItem{Word: "mesa", PartOfSpeech: Noun, Translation: "テーブル", ExampleSentence: "La mesa es grande."}

	tbl := []func(v *VocabularyItem){
		func(v *VocabularyItem) { v.Word = "  " },
		func(v *VocabularyItem) { v.Translation = "" },
		func(v *VocabularyItem) { v.ExampleSentence = "" },
		func(v *VocabularyItem) { v.PartOfSpeech = "article" },
	}

	for i, mutate := range tbl {
		v := valid
		mutate(&v)
		_, ok := v.Normalize()
		assert.False(t, ok, "case %d", i)
	}
}

func TestProgressStatus_Valid(t *testing.T) {
	for _, s := range []ProgressStatus{Unlearned, Learning, Mastered, NeedsReview} {
		assert.True(t, s.Valid())
	}
	assert.False(t, ProgressStatus("forgotten").Valid())
}
