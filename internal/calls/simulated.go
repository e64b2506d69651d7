package calls

import (
	"time"

	"github.com/MrWong99/voxpulse/pkg/types"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Rand is the randomness a simulated call needs. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewSimulated returns an inbound sales lead as produced by the dashboard's
// "Start Simulation" button.
func NewSimulated(now time.Time, rng Rand) Record {
	id := make([]byte, 6)
	for i := range id {
		id[i] = idAlphabet[rng.IntN(len(idAlphabet))]
	}
	return Record{
		ID:              "call_" + string(id),
		CustomerName:    "New Lead",
		CustomerPhone:   "+1 (555) 349-2201",
		AgentName:       "Mike (Sales)",
		AgentType:       types.AgentSales,
		DurationSeconds: 30 + rng.IntN(300),
		Status:          types.StatusCompleted,
		Timestamp:       now.UTC(),
		Transcript:      mockTranscripts[rng.IntN(len(mockTranscripts))],
		Analysis:        NotRun(),
	}
}
