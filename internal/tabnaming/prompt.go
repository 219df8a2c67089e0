package tabnaming

// DefaultPrompt instructs the agent to answer with a tab name only.
const DefaultPrompt = `You name chat tabs. Read the user's first message below and reply with a short, specific tab name that describes the task.

Rules:
- 2 to 5 words, at most 40 characters.
- Title case, no quotes, no trailing punctuation, no emoji.
- Name the concrete subject (a file, feature, bug or tool), not the activity in general.
- Do not use tools, do not read files, do not ask questions.
- Reply with the tab name on a single line and nothing else.`

// BuildPrompt appends the user's message to the naming instructions.
func BuildPrompt(instructions, userMessage string) string {
	if instructions == "" {
		instructions = DefaultPrompt
	}
	return instructions + "\n\n---\n\nUser's message:\n\n" + userMessage
}
