package rag

import (
	"fmt"
	"regexp"
	"strings"

	"thesearch/internal/domain"
)

// DefaultQuery is answered when a request carries no usable query.
const DefaultQuery = "Who said with great power comes great responsibility?"

const contextPlaceholder = "{context}"

const answerPromptTemplate = `
You are an advanced, reliable, candid AI system that takes user search queries, converts them into questions, and answers them, using specific facts and details sourced from webpages to prove your answer. Convert the user query to a standalone one based on context. It is critical that you do not alter the meaning of the query. Ignore irrelevant results. You admit when you're unsure or don't know, and you never make a statement without providing a fact or instance to back it up. please write clean, concise and accurate answer to the question., then provide more detail later.
You will be given a set of related contexts to the question, each starting with a reference number like [[citation:x]], where x is a number. Please use the context and cite the context at the end of each sentence if applicable.
Your answer should be fact-filled and SPECIFIC, providing information like prices, review sentiment, dates, addresses, times,  recipe instructions and ingredients with specific steps, times and amounts, timelines, characters, answers, features, comparisons, shipping times, related media.
Your answer must be correct, accurate and written by an expert using an unbiased and professional tone. Stylistically write as though a Professor or The Economist would, in short, approachable, and professional language. Please limit to 2048 tokens. Do not give any information that is not related to the question, and do not repeat. Say "information is missing on" followed by the related topic, if the given context do not provide sufficient information.
Your answer shoud be verbose and long .
Do not put any source ,reference list in the end . 
Please cite the contexts with the reference numbers, in the format [citation:x]. If a sentence comes from multiple contexts, please list all applicable citations, like [citation:3][citation:5]. Other than code and specific names and citations, your answer must be written in the same language as the question.
Here are the set of contexts:
{context}
Remember, don't blindly repeat the contexts verbatim. And here is the user question:
`

const relatedPromptTemplate = `
You are a helpful assistant that helps the user to ask related questions, based on user's original question and the related contexts. Please identify worthwhile topics that can be follow-ups, and write questions no longer than 20 words each. Please make sure that specifics, like events, names, locations, are included in follow up questions so they can be asked standalone. For example, if the original question asks about "the Manhattan project", in the follow up question, do not just say "the project", but use the full name "the Manhattan project". Your related questions must be in the same language as the original question.

Here are the contexts of the question:

{context}

Remember, based on the original question and related contexts, suggest three such further questions. Do NOT repeat the original question. Each related question should be no longer than 20 words. Here is the original question:
`

// relatedPromptJSONTemplate is used with providers that cannot be trusted
// with function calling.
const relatedPromptJSONTemplate = `
You are a helpful assistant that helps the user to ask related questions, based on user's original question and the related contexts. Please identify worthwhile topics that can be follow-ups, and write questions no longer than 20 words each. Please make sure that specifics, like events, names, locations, are included in follow up questions so they can be asked standalone. For example, if the original question asks about "the Manhattan project", in the follow up question, do not just say "the project", but use the full name "the Manhattan project". Your related questions must be in the same language as the original question.

Your final answer should only be a structured jsons. 

EXAMPLE RESPONSE:
{
  "questions": [
    {"question": "Who popularized the quote 'With great power comes great responsibility'?"},
    {"question": "What is the origin of the quote 'With great power comes great responsibility'?"},
    {"question": "Are there any other notable figures who have used the phrase 'With great power comes great responsibility'? "}
  ]
}

End of examples

It's critical to respect JSON format! Always respond on the predefined format and make sure your queries are proper sentences and adhere to the key-value rules of JSON dictionaries.

Here are the contexts of the question:

{context}

Remember, based on the original question and related contexts, suggest three such further questions. Do NOT repeat the original question. Each related question should be no longer than 20 words. Here is the original question:
`

// instTagRe matches Llama instruction markers smuggled into a query.
var instTagRe = regexp.MustCompile(`\[/?INST\]`)

// NormalizeQuery strips instruction markers and falls back to DefaultQuery
// for blank input.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(instTagRe.ReplaceAllString(q, ""))
	if q == "" {
		return DefaultQuery
	}
	return q
}

// AnswerPrompt renders the system prompt for the answer, citing each
// context as [[citation:i]] starting at 1.
func AnswerPrompt(contexts []domain.SearchResult) string {
	return strings.Replace(answerPromptTemplate, contextPlaceholder, citedContexts(contexts), 1)
}

// RelatedPrompt renders the system prompt for related questions asked
// through function calling.
func RelatedPrompt(contexts []domain.SearchResult) string {
	return strings.Replace(relatedPromptTemplate, contextPlaceholder, plainContexts(contexts), 1)
}

// RelatedPromptJSON renders the system prompt asking for a bare JSON object.
func RelatedPromptJSON(contexts []domain.SearchResult) string {
	return strings.Replace(relatedPromptJSONTemplate, contextPlaceholder, plainContexts(contexts), 1)
}

func citedContexts(contexts []domain.SearchResult) string {
	parts := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = citedContext(i, c)
	}
	return strings.Join(parts, "\n\n")
}

func citedContext(i int, c domain.SearchResult) string {
	return fmt.Sprintf("[[citation:%d]] %s", i+1, c.Snippet)
}

func plainContexts(contexts []domain.SearchResult) string {
	parts := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = c.Snippet
	}
	return strings.Join(parts, "\n\n")
}
