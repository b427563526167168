package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// NotFoundSentinel is the exact token the grounded prompt asks the model to
// emit when the context does not answer the question.
const NotFoundSentinel = "NOT_FOUND"

func buildIntentPrompt(question string) string {
	return fmt.Sprintf(`Classify the user's question about club events.
If the user asks about all events in a year, month, semester, or club-wide activity,
ALWAYS classify as: MULTI

Intent categories:
MULTI - an overview or report of many events in a period
SINGLE - one specific event or one attribute of it
ANALYTICS - counts or statistics grouped by domain
FILTER - a list of events matching a topic or condition
DESCRIBE - what one event was about
RECOMMEND - suggestions of relevant events

Examples of MULTI:
"list all the events this year"
"what all events happened in 2025"
"events this month"
"show club events"
"give a report on 2024 events"

User question: %q

Respond ONLY with one word: MULTI, SINGLE, ANALYTICS, FILTER, DESCRIBE, or RECOMMEND
`, question)
}

func buildStructuredIntentPrompt(question string) string {
	return fmt.Sprintf(`You route questions about club events.
Return strict JSON only, no markdown:
{"intent": "STRUCTURED" or "SEMANTIC", "query": {...}, "search": "..."}

Use STRUCTURED when the question is answered by listing or counting events.
"query" then has keys:
  report: one of "list", "count_by_domain", "count_by_venue", "count_by_mode"
  year: integer or null
  domain, venue, mode, name_contains: string or null
  limit: integer from 1 to 100 or null

Use SEMANTIC when the question needs event descriptions.
"search" then holds a short search phrase capturing what to look for.

Question: %q
`, question)
}

func buildAttributePrompt(question string) string {
	return fmt.Sprintf(`Determine which event attributes the user wants.

Allowed attribute keys:
["name", "domain", "date", "time", "venue", "details", "all"]

Examples:
"When was the event conducted?" -> ["date","time"]
"Return the date" -> ["date"]
"Where did it take place?" -> ["venue"]
"What was the event about?" -> ["details"]
"Intro to AI Agents" -> ["all"]

User query: %q
Return a JSON list only.
`, question)
}

func buildGroundedPrompt(question string, intent domain.ParsedIntent, passages []domain.Passage) string {
	var contextBuilder strings.Builder
	for idx, p := range passages {
		contextBuilder.WriteString(fmt.Sprintf("[%d] event=%s\n%s\n\n", idx+1, p.EventID, p.Text))
	}

	var focus string
	switch intent.Kind {
	case domain.IntentSingle:
		if !intent.WantsAll() {
			names := make([]string, 0, len(intent.Attributes))
			for _, a := range intent.Attributes {
				names = append(names, string(a))
			}
			focus = "Answer only with these attributes of the event: " + strings.Join(names, ", ") + ".\n"
		}
	case domain.IntentRecommend:
		focus = "Recommend the events from the context that best match, most relevant first.\n"
	case domain.IntentFilter:
		focus = "List every event from the context that matches the question.\n"
	case domain.IntentDescribe:
		focus = "Describe the event from the context.\n"
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
Do not use outside knowledge.
If the context is insufficient, reply with exactly %s and nothing else.
%s
Question:
%s

Context:
%s
`, NotFoundSentinel, focus, question, contextBuilder.String())
}
