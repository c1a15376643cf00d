package conversation

import "fmt"

// Prompt builds the generation prompt for a message about sport.
func Prompt(sport, message string) string {
	return fmt.Sprintf(
		"You are an AI assistant specialized in %s. Answer the user's question %q clearly and objectively, "+
			"taking into account the most recent information available.",
		sport, message,
	)
}

// Apology is the reply shown when generation fails.
func Apology(sport string) string {
	return fmt.Sprintf("Sorry, something went wrong while processing your question about %s. Please try again later.", sport)
}
