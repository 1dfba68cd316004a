package extract

import (
	"errors"
	"testing"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mesa = model.VocabularyItem{
	Word:            "mesa",
	PartOfSpeech:    model.Noun,
	Translation:     "テーブル",
	ExampleSentence: "La mesa es de madera.",
}

const mesaJSON = `{"vocabulary":[{"word":"mesa","part_of_speech":"noun","translation":"テーブル","example_sentence":"La mesa es de madera."}]}`

func TestParseVocabulary(t *testing.T) {
	tbl := []struct {
		name string
		resp Response
	}{
		{"structured", Response{Text: mesaJSON, Structured: true}},
		{"structured with whitespace", Response{Text: "\n  " + mesaJSON + "\n", Structured: true}},
		{"plain", Response{Text: mesaJSON}},
		{"code fence", Response{Text: "```json\n" + mesaJSON + "\n```"}},
		{"prose around", Response{Text: "Here is the list you asked for:\n" + mesaJSON + "\nLet me know if you need more."}},
		{"structured but wrapped", Response{Text: "Sure! " + mesaJSON, Structured: true}},
		{"japanese part of speech", Response{Text: `{"vocabulary":[{"word":"mesa","part_of_speech":"名詞","translation":"テーブル","example_sentence":"La mesa es de madera."}]}`}},
		{"example alias", Response{Text: `{"vocabulary":[{"word":"mesa","part_of_speech":"noun","translation":"テーブル","example":"La mesa es de madera."}]}`}},
		{"leading brace noise", Response{Text: "{not json} then " + mesaJSON}},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			items, dropped, err := parseVocabulary(c.resp)
			require.NoError(t, err)
			assert.Equal(t, 0, dropped)
			assert.Equal(t, []model.VocabularyItem{mesa}, items)
		})
	}
}

func TestParseVocabulary_BracesInsideStrings(t *testing.T) {
	text := `Result: {"vocabulary":[{"word":"llave","part_of_speech":"noun","translation":"鍵","example_sentence":"La llave {roja} está aquí \"}\"."}]} trailing }`

	items, _, err := parseVocabulary(Response{Text: text})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, `La llave {roja} está aquí "}".`, items[0].ExampleSentence)
}

func TestParseVocabulary_DropsInvalidItems(t *testing.T) {
	text := `{"vocabulary":[
		{"word":"mesa","part_of_speech":"noun","translation":"テーブル","example_sentence":"La mesa es de madera."},
		{"word":"","part_of_speech":"noun","translation":"空","example_sentence":"x"},
		{"word":"de","part_of_speech":"preposition","translation":"の","example_sentence":"La casa de Ana."},
		{"word":"silla","part_of_speech":"noun","translation":"椅子"},
		{"word":42},
		"nope",
		{"word":"comer","part_of_speech":"Verb","translation":"食べる","example_sentence":"Vamos a comer."}
	]}`

	items, dropped, err := parseVocabulary(Response{Text: text, Structured: true})
	require.NoError(t, err)
	assert.Equal(t, 5, dropped)
	require.Len(t, items, 2)
	assert.Equal(t, "mesa", items[0].Word)
	assert.Equal(t, "comer", items[1].Word)
	assert.Equal(t, model.Verb, items[1].PartOfSpeech)

	for _, it := range items {
		assert.True(t, it.Valid())
	}
}

func TestParseVocabulary_SkipsObjectsWithoutVocabulary(t *testing.T) {
	text := `Format: {"word": "..."}. Answer: {"vocabulary":[{"word":"mesa","part_of_speech":"noun","translation":"table","example_sentence":"Hay una mesa."}]}`

	items, dropped, err := parseVocabulary(Response{Text: text})
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	require.Len(t, items, 1)
	assert.Equal(t, "mesa", items[0].Word)
	assert.Equal(t, "table", items[0].Translation)

	items, _, err = parseVocabulary(Response{Text: `{"word":"x"} ` + mesaJSON, Structured: true})
	require.NoError(t, err)
	assert.Equal(t, []model.VocabularyItem{mesa}, items)
}

func TestParseVocabulary_Empty(t *testing.T) {
	for _, text := range []string{`{"vocabulary":[]}`, `ok {"other":1} {"vocabulary": [ ]}`} {
		items, dropped, err := parseVocabulary(Response{Text: text})
		require.NoError(t, err, text)
		assert.Equal(t, 0, dropped)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
}

func TestParseVocabulary_Malformed(t *testing.T) {
	tbl := []Response{
		{Text: ""},
		{Text: "I cannot see any objects in this picture."},
		{Text: `{"vocabulary": "mesa"}`},
		{Text: `{"vocabulary": null}`, Structured: true},
		{Text: `{"vocabulary": [`},
		{Text: `{}`},
		{Text: `{}`, Structured: true},
		{Text: `ok {"other":1} and {"word":"mesa"}`},
	}

	for _, resp := range tbl {
		_, _, err := parseVocabulary(resp)
		assert.True(t, errors.Is(err, ErrMalformedResponse), resp.Text)
	}
}

func TestMatchBrace(t *testing.T) {
	assert.Equal(t, 1, matchBrace("{}", 0))
	assert.Equal(t, 10, matchBrace(`{"a":{"}"}}`, 0))
	assert.Equal(t, -1, matchBrace(`{"a":1`, 0))
}
