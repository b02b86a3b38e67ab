package classify

import (
	"fmt"
	"strings"

	"github.com/sells-group/funding-tracker/internal/model"
)

// classifySystemPrompt lists the full sector taxonomy so the prompt cache
// entry covers every request in a run.
func classifySystemPrompt() string {
	names := make([]string, len(model.AllSectors))
	for i, s := range model.AllSectors {
		names[i] = "- " + string(s)
	}
	return fmt.Sprintf(`You are a climate-tech market analyst. Classify the company described in a funding announcement into exactly one of these sectors:

%s

Respond with only a JSON object, no prose:
{"sector": "<sector name from the list>", "confidence": <0.0 to 1.0>}

Use "Other" when no listed sector fits. Do not invent sector names.`, strings.Join(names, "\n"))
}

const gateSystemPrompt = `You screen news articles for a funding-event tracker. Decide whether the article announces a specific venture funding event (a company raising a round, grant, or debt financing). General market commentary, fund launches, and acquisition news do not count.

Respond with only a JSON object, no prose:
{"is_funding": <true or false>, "confidence": <0.0 to 1.0>}`

const summarySystemPrompt = `You summarize funding announcements for a climate-tech tracker. Write exactly one factual sentence naming the company, the amount raised, the round stage, and the lead investor when known. No speculation, no adjectives beyond what the article states.`
