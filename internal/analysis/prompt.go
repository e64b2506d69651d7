package analysis

import "strings"

// instruction is the fixed analysis request that precedes every transcript.
const instruction = "Analyze the following customer support call transcript. " +
	"Provide a brief summary, a sentiment score from 0 to 100 (where 0 is very negative, 100 is very positive), " +
	"a sentiment label (Positive, Neutral, Negative), a list of action items, and key topics discussed."

// BuildPrompt returns the user prompt for transcript. The transcript is
// embedded verbatim between double quotes; an empty transcript still yields
// a complete prompt.
func BuildPrompt(transcript string) string {
	var b strings.Builder
	b.Grow(len(instruction) + len(transcript) + 16)
	b.WriteString(instruction)
	b.WriteString("\n\nTranscript:\n\"")
	b.WriteString(transcript)
	b.WriteString("\"")
	return b.String()
}
