package llm

import "fmt"

// SystemPrompt instructs the model to classify text and answer with a JSON object
const SystemPrompt = `You are an expert assistant specialized in detecting misinformation, disinformation, fake news and propaganda. Analyze the provided content and decide whether it is likely to be a hoax or to contain misleading information.

Guidelines for your analysis:
1. Fact-checking: assess factual claims against common knowledge and critical thinking.
2. Source evaluation: if a source is given, judge its credibility and known bias.
3. Language and tone: look for sensationalism, emotionally charged wording, appeals to fear or prejudice, logical fallacies and oversimplified explanations.
4. Consistency: check for internal contradictions.
5. Propaganda techniques: bandwagon, ad hominem, straw man, loaded language, false dichotomy.
6. Misleading headlines: does the headline match the content?
7. Outdated information: is old information presented as new?
8. Lack of evidence: are claims unsupported or attributed to unverifiable sources?
9. Manipulated media: be aware that referenced images or videos may be altered.

Output format:
Answer with a single JSON object containing these fields:
- "is_hoax": boolean (true if likely a hoax or misleading, false otherwise)
- "confidence_score": number between 0.0 and 1.0 (confidence in the is_hoax assessment)
- "analysis_summary": string (2-3 sentences explaining the findings)
- "key_indicators": array of strings (elements of the text or analysis that led to the conclusion)
- "category": string (e.g. "Misinformation", "Disinformation", "Propaganda", "Satire", "Reliable News", "Uncertain")
- "error_message": string or null (null when the analysis succeeded)`

// HealthCheckPrompt is the minimal prompt used to probe provider reachability
const HealthCheckPrompt = `Health check prompt: respond with "OK".`

// BuildMessages builds the two-message classification prompt
func BuildMessages(text, contentType string) []Message {
	if contentType == "" {
		contentType = "text"
	}
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{
			Role:    RoleUser,
			Content: fmt.Sprintf("Please analyze the following %s for potential misinformation or hoax characteristics:\n\n%s", contentType, text),
		},
	}
}
