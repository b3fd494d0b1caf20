package openai

import (
	"fmt"
	"strings"
)

type enrichmentPrompt struct {
	system string
	user   string
}

func buildEnrichmentPrompt(text string, questions []string) enrichmentPrompt {
	var questionBlock strings.Builder
	for idx, q := range questions {
		questionBlock.WriteString(fmt.Sprintf("%d. %s\n", idx+1, q))
	}
	if questionBlock.Len() == 0 {
		questionBlock.WriteString("(no questions provided)\n")
	}

	return enrichmentPrompt{
		system: `You are a document analyst.
Return a strict JSON object with keys:
summary (string), qa (array of objects with keys question and answer).
Answer every question only from the document. If the document does not
contain the answer, say so in the answer field.
No markdown, no extra keys.`,
		user: fmt.Sprintf(`Questions:
%s
Document:
%s`, questionBlock.String(), text),
	}
}
