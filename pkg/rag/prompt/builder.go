// Package prompt owns every instruction sent to the model. No other package
// assembles prompt text.
package prompt

import (
	"fmt"
	"time"
)

const answerTemplate = `Today's date is %s.

You are a helpful virtual assistant that answers questions using the content below. Your task is to create detailed answers to the questions by combining your understanding of the world with the content provided below. Do not share links

Include section names and or article number references in your answer.
Format your response in markdown.
Use proper line breaks between paragraphs.
Do not hallucinate the references (section names and or article numbers)

Context:
=======
%s
=======

Current query: %s`

const decisionTemplate = `You are an AI assistant tasked with determining if additional information from a web search is needed to answer a user's query.

Your task:
1. Analyze the given context and the user's query.
2. Determine if the context contains sufficient information to answer the query comprehensively.
3. If the context is sufficient, respond with "No".
4. If additional information is required, respond with a query to search for.

Respond ONLY with one of these two phrases. Do not provide any other text or explanation.

Context:
-------
%s
-------`

// AnswerInstruction builds the system instruction for answer generation.
// The date is rendered as YYYY-MM-DD.
func AnswerInstruction(context, query string, date time.Time) string {
	return fmt.Sprintf(answerTemplate, date.UTC().Format("2006-01-02"), context, query)
}

// DecisionInstruction builds the system instruction for the augmentation
// decision. The model answers either "No" or a literal search query.
func DecisionInstruction(context string) string {
	return fmt.Sprintf(decisionTemplate, context)
}
