package notes

const systemPrompt = "You are a helpful assistant that summarizes lectures into concise and well-structured notes using bullet points, headings, examples, and emojis."

const (
	userPromptPrefix = "Here is a transcription of a lecture:\n"
	userPromptSuffix = "\n\nCan you create a summary with bullet points, headings, examples, and add emojis where appropriate?"
)

// BuildRequest assembles the fixed two-message prompt around text.
func BuildRequest(params Params, text string) Request {
	return Request{
		Model: params.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userPromptPrefix + text + userPromptSuffix},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
}
