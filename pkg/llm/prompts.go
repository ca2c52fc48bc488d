package llm

import (
	"github.com/tmc/langchaingo/prompts"
)

const DefaultAnswerTemplate = `Role: document question-answering assistant.

Guidelines:
1. Answer strictly from the provided context; do not use outside knowledge.
2. If the context does not contain the answer, say that you do not know.
3. Include relevant URLs or document titles when they help the user.
4. A partial answer is fine; a wrong one is not.

User query:
{{.question}}

Context:
{{.context}}`

const DefaultReformatTemplate = `Role: query reformulation assistant.

Rewrite the user query so that it can be understood without the chat history.
If the query does not relate to the history, return it unchanged.
Return only the query, with no explanation.

User query:
{{.question}}

Chat history:
{{.chat_history}}`

const DefaultRelatedTemplate = `Role: related query generator.

Given the question and its answer, suggest 3 short follow-up questions the user
might ask next. Return them as one line separated by '||'.

User query:
{{.question}}

Answer:
{{.answer}}`

func newTemplate(text, fallback string, vars ...string) prompts.PromptTemplate {
	if text == "" {
		text = fallback
	}
	return prompts.NewPromptTemplate(text, vars)
}
