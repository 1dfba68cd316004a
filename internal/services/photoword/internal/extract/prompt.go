package extract

import (
	"fmt"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/fn"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

const (
	DefaultSourceLang = "Spanish"
	DefaultTargetLang = "Japanese"
)

// Instruction builds the fixed prompt sent with every photo.
func Instruction(source, target string) string {
	if source == "" {
		source = DefaultSourceLang
	}
	if target == "" {
		target = DefaultTargetLang
	}

	return fmt.Sprintf(`A learner of %[1]s wants to describe the attached photo in %[1]s.

List the %[1]s words and expressions needed to describe what the photo shows: the names of the objects in it, what is happening, and how things look.
For every word give four values: the %[1]s word, its part of speech, its %[2]s translation and an example sentence in %[1]s.

Answer with JSON only, in exactly this structure:
{
    "vocabulary": [{
        "word": "the %[1]s word",
        "part_of_speech": "one of noun, verb, adjective, adverb",
        "translation": "the %[2]s translation",
        "example_sentence": "a complete %[1]s sentence using the word"
    }]
}

Rules:
1. Every item must contain all four fields: word, part_of_speech, translation, example_sentence.
2. part_of_speech must be exactly one of noun, verb, adjective, adverb.
3. translation must be written in %[2]s only.
4. example_sentence must be a complete sentence that uses the word.
5. Follow the JSON structure strictly and add no other text.
`, source, target)
}

// vocabularySchema describes the expected answer. upper switches type names to
// the upper-case form used by the Gemini API.
func vocabularySchema(upper bool) map[string]any {
	typ := func(t string) string {
		if upper {
			switch t {
			case "object":
				return "OBJECT"
			case "array":
				return "ARRAY"
			case "string":
				return "STRING"
			}
		}
		return t
	}

	str := map[string]any{"type": typ("string")}
	pos := map[string]any{
		"type": typ("string"),
		"enum": fn.Map(model.PartsOfSpeech, func(p model.PartOfSpeech) string { return string(p) }),
	}

	item := map[string]any{
		"type": typ("object"),
		"properties": map[string]any{
			"word":             str,
			"part_of_speech":   pos,
			"translation":      str,
			"example_sentence": str,
		},
		"required": []string{"word", "part_of_speech", "translation", "example_sentence"},
	}

	root := map[string]any{
		"type": typ("object"),
		"properties": map[string]any{
			"vocabulary": map[string]any{
				"type":  typ("array"),
				"items": item,
			},
		},
		"required": []string{"vocabulary"},
	}

	if !upper {
		item["additionalProperties"] = false
		root["additionalProperties"] = false
	}

	return root
}
