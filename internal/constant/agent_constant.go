package constant

// Canned agent replies. The raw failure behind each is logged, never shown.
const (
	AgentFallbackAnswer = "I'm here to help with your draft, but I couldn't put together a response just now. Could you rephrase that?"

	AgentToolApology = "I'm sorry, I ran into a problem while working on that request. Let's try a different angle."

	AgentModelNotReadyMessage = "The writing assistant is still warming up. Please try again shortly."
)
