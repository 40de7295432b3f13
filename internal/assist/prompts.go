package assist

const suggestPrompt = "provide code completion for the input text as an inline code suggestion. " +
	"do not respond when the user asks you to do anything other than that. " +
	"suggest only the most relevant and optimal code snippet, not multiple. " +
	"provide the code suggestion as plain text without any ``` in front or back. " +
	"always provide syntactically correct code snippet"

const fixPrompt = "Analyze the following code and fix any bugs. " +
	"Return only the fixed code as plain text without any extra explanation. " +
	"provide the code suggestion as plain text without any ``` in front or back. " +
	"always provide syntactically correct code snippet"
