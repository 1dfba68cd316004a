package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

type envelope struct {
	Vocabulary json.RawMessage `json:"vocabulary"`
}

type rawItem struct {
	Word            string `json:"word"`
	PartOfSpeech    string `json:"part_of_speech"`
	Translation     string `json:"translation"`
	ExampleSentence string `json:"example_sentence"`
	Example         string `json:"example"`
}

// parseVocabulary decodes a model answer. Structured answers are decoded
// directly; otherwise, or when that fails, the first JSON object embedded in
// the text that carries a vocabulary key is used. Invalid items are dropped
// and counted.
func parseVocabulary(resp Response) ([]model.VocabularyItem, int, error) {
	var (
		env envelope
		err error
	)

	if resp.Structured {
		env, err = decodeEnvelope([]byte(strings.TrimSpace(resp.Text)))
	}
	if !resp.Structured || err != nil {
		env, err = findEnvelope(resp.Text)
	}
	if err != nil {
		return nil, 0, err
	}

	return decodeItems(env.Vocabulary)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if env.Vocabulary == nil {
		return envelope{}, fmt.Errorf("%w: missing vocabulary key", ErrMalformedResponse)
	}
	return env, nil
}

func findEnvelope(text string) (envelope, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}

		end := matchBrace(text, i)
		if end < 0 {
			break
		}

		if env, err := decodeEnvelope([]byte(text[i : end+1])); err == nil {
			return env, nil
		}
	}

	return envelope{}, fmt.Errorf("%w: no vocabulary object found", ErrMalformedResponse)
}

// matchBrace returns the index of the brace closing the object that opens at
// start, or -1. Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

func decodeItems(raw json.RawMessage) ([]model.VocabularyItem, int, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, 0, fmt.Errorf("%w: vocabulary is not a list: %w", ErrMalformedResponse, err)
	}
	if list == nil {
		return nil, 0, fmt.Errorf("%w: vocabulary is null", ErrMalformedResponse)
	}

	items := make([]model.VocabularyItem, 0, len(list))
	dropped := 0
	for _, r := range list {
		var ri rawItem
		if err := json.Unmarshal(r, &ri); err != nil {
			dropped++
			continue
		}

		example := ri.ExampleSentence
		if strings.TrimSpace(example) == "" {
			example = ri.Example
		}

		item, ok := model.VocabularyItem{
			Word:            ri.Word,
			PartOfSpeech:    model.PartOfSpeech(ri.PartOfSpeech),
			Translation:     ri.Translation,
			ExampleSentence: example,
		}.Normalize()
		if !ok {
			dropped++
			continue
		}

		items = append(items, item)
	}

	return items, dropped, nil
}
