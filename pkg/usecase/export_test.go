package usecase

// BuildAssistSystemPrompt is exported for testing
var BuildAssistSystemPrompt = buildAssistSystemPrompt
