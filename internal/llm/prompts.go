package llm

import "fmt"

// Caveats are the phrasings an answer must use when repeating a claim of a
// given reliability.
type Caveats struct {
	Verified     string `yaml:"verified" mapstructure:"verified"`
	SelfDeclared string `yaml:"self_declared" mapstructure:"self_declared"`
}

// DefaultCaveats is the phrasing the product ships with.
var DefaultCaveats = Caveats{
	Verified:     "Đã được xác thực rằng...",
	SelfDeclared: "Theo khai báo của người dùng...",
}

// OrDefault fills empty phrasings from DefaultCaveats.
func (c Caveats) OrDefault() Caveats {
	if c.Verified == "" {
		c.Verified = DefaultCaveats.Verified
	}
	if c.SelfDeclared == "" {
		c.SelfDeclared = DefaultCaveats.SelfDeclared
	}
	return c
}

const answerSystem = `You answer questions about a person using only the claims provided.

Each claim carries a reliability marker:
- VERIFIED claims were attested by a verifier. You may say %q.
- Has Evidence claims come with supporting material such as a repository or link.
- Self-Declared claims are unverified. Always say %q.

Rules:
1. Answer only from the claims. Do not invent facts.
2. Prefer verified claims when claims disagree.
3. If the claims do not answer the question, say that there is not enough information.
4. Keep the answer short.`

// AnswerPrompt builds the prompt for answering query from a rendered
// context block.
func AnswerPrompt(query, contextBlock string, cv Caveats) Prompt {
	cv = cv.OrDefault()
	if query == "" {
		query = "Summarize what is known about this person."
	}
	return Prompt{
		System: fmt.Sprintf(answerSystem, cv.Verified, cv.SelfDeclared),
		User:   fmt.Sprintf("%s\n\nQuestion: %s", contextBlock, query),
	}
}
