// Package oracle turns page text into candidate knowledge-graph triples,
// either through an LLM served by OpenRouter or with offline rules.
package oracle

import "strings"

// SystemPrompt frames the model as a triple extractor.
const SystemPrompt = "You are an expert at extracting knowledge graph triples from educational text. Respond with a single JSON object."

const extractionTemplate = `You are an expert at extracting knowledge graph triples from educational text.

[Entity Types]
- School: Educational institutions (e.g., Stanford University, MIT)
- Program: Academic programs/majors (e.g., Computer Science, Data Science)
- Company: Employers (e.g., Google, Microsoft)
- Job: Job titles (e.g., AI Engineer, Data Scientist)
- Skill: Technical/professional skills (e.g., Machine Learning, Python)
- Location: Cities/States (e.g., Palo Alto CA, New York NY)

[Relation Types]
- LOCATED_IN: School is located in Location
- OFFERS: School offers Program
- DEVELOPS: Program develops Skill
- LEADS_TO: Program leads to Job
- HIRES_FROM: Company hires from School
- REQUIRES: Job requires Skill
- PARTNERS_WITH: School partners with Company

[Example 1]
Text: "Stanford's Computer Science program teaches Machine Learning and graduates work at Google."
Output:
{
  "triples": [
    {"head": "Stanford University", "relation": "OFFERS", "tail": "Computer Science", "confidence": 0.95},
    {"head": "Computer Science", "relation": "DEVELOPS", "tail": "Machine Learning", "confidence": 0.93},
    {"head": "Google", "relation": "HIRES_FROM", "tail": "Stanford University", "confidence": 0.91}
  ]
}

[Example 2]
Text: "MIT is located in Cambridge, Massachusetts and partners with Amazon."
Output:
{
  "triples": [
    {"head": "Massachusetts Institute of Technology", "relation": "LOCATED_IN", "tail": "Cambridge, Massachusetts", "confidence": 0.94},
    {"head": "Massachusetts Institute of Technology", "relation": "PARTNERS_WITH", "tail": "Amazon", "confidence": 0.90}
  ]
}

[Example 3]
Text: "The Data Science program prepares students for Data Scientist roles that require Python."
Output:
{
  "triples": [
    {"head": "Data Science", "relation": "LEADS_TO", "tail": "Data Scientist", "confidence": 0.88},
    {"head": "Data Scientist", "relation": "REQUIRES", "tail": "Python", "confidence": 0.87}
  ]
}

Now extract triples from:
{text}

Return JSON only.
`

// BuildPrompt renders the extraction prompt for text, prefixed with the
// school context when contextName is set.
func BuildPrompt(text, contextName string) string {
	prompt := strings.Replace(extractionTemplate, "{text}", text, 1)
	if name := strings.TrimSpace(contextName); name != "" {
		prompt = "School context: " + name + "\n\n" + prompt
	}
	return prompt
}
