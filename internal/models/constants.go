package models

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 120
	DefaultTopK         = 3

	// CitationFormat renders a passage header for the prompt context block.
	CitationFormat = "[Source: %s, Page: %d]"
)

var (
	// AnswerPromptTemplate has two slots, context and question. The model is
	// directed to answer from the given context only and to cite sources in
	// the same [Source: ..., Page: ...] format the context block carries.
	AnswerPromptTemplate = `Use the context below to answer the question.
Answer using only the given context. If the context does not contain the
answer, say that you cannot find it. Cite sources using the
[Source: ..., Page: ...] information when relevant.

Context:
{{.context}}

Question: {{.question}}
`

	// RelevancePromptTemplate is the judge prompt of the retrieval
	// relevance filter. The model must reply YES or NO only.
	RelevancePromptTemplate = `Given the following question and context, return YES if the context is relevant to the question and NO if it isn't. Answer with YES or NO only.

Question: {{.question}}

Context:
{{.context}}

Relevant (YES / NO):`
)
