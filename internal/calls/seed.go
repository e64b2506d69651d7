package calls

import (
	"time"

	"github.com/MrWong99/voxpulse/pkg/types"
)

var mockTranscripts = [...]string{
	`Agent: Hello, this is VoxPulse Support. How can I help you today?
Customer: Hi, I'm having trouble logging into my dashboard. It says invalid credentials.
Agent: I can help with that. Have you tried resetting your password via the 'Forgot Password' link?
Customer: No, I haven't. Where is that located?
Agent: It's right below the login button. I can send you a direct link if you prefer.
Customer: That would be great, thanks.
Agent: Sent. Please check your email in a few moments.
Customer: Got it. Resetting now... okay, it worked! Thank you.
Agent: You're welcome! Is there anything else?
Customer: No, that's all. Bye.`,

	`Agent: Hi there! I noticed you were looking at our premium plan. Do you have any questions?
Customer: Yeah, is it really $50 a month? That seems steep.
Agent: It is $50, but it includes unlimited AI calls and advanced analytics. For your team size, it usually pays for itself in a week.
Customer: Hmm, I'm not sure. The competitor is offering something similar for $30.
Agent: I understand price is a factor. However, our latency is 50% lower, which is critical for voice. Would you like a demo?
Customer: I guess a demo wouldn't hurt.
Agent: Great! I can schedule that for tomorrow at 2 PM?
Customer: Make it 3 PM.
Agent: Done. 3 PM tomorrow.`,

	`Agent: Good morning, Dr. Smith's office.
Customer: Hi, I need to cancel my appointment for Tuesday.
Agent: Okay, can I get your full name?
Customer: John Doe.
Agent: I see your appointment. I've cancelled it. Would you like to reschedule?
Customer: No, not right now. I'll call back later.
Agent: Understood. Have a good day.`,
}

// MockTranscripts returns the canned transcripts used by the seed and the
// call simulator.
func MockTranscripts() []string {
	return append([]string(nil), mockTranscripts[:]...)
}

// Seed returns the call log every session starts with, newest first, with
// timestamps relative to now.
func Seed(now time.Time) []Record {
	now = now.UTC()
	return []Record{
		{
			ID:              "call_x92k20",
			CustomerName:    "Alice Freeman",
			CustomerPhone:   "+1 (555) 123-4567",
			AgentName:       "Sarah (Support)",
			AgentType:       types.AgentSupport,
			DurationSeconds: 145,
			Status:          types.StatusCompleted,
			Timestamp:       now.Add(-30 * time.Minute),
			Transcript:      mockTranscripts[0],
			Analysis:        NotRun(),
		},
		{
			ID:              "call_m192j2",
			CustomerName:    "Marcus Chen",
			CustomerPhone:   "+1 (555) 987-6543",
			AgentName:       "Mike (Sales)",
			AgentType:       types.AgentSales,
			DurationSeconds: 320,
			Status:          types.StatusCompleted,
			Timestamp:       now.Add(-2 * time.Hour),
			Transcript:      mockTranscripts[1],
			Analysis:        NotRun(),
		},
		{
			ID:              "call_p0291l",
			CustomerName:    "John Doe",
			CustomerPhone:   "+1 (555) 555-0199",
			AgentName:       "Jessica (Booking)",
			AgentType:       types.AgentBooking,
			DurationSeconds: 45,
			Status:          types.StatusCompleted,
			Timestamp:       now.Add(-24 * time.Hour),
			Transcript:      mockTranscripts[2],
			Analysis:        NotRun(),
		},
		{
			ID:              "call_f821kk",
			CustomerName:    "Unknown Caller",
			CustomerPhone:   "+1 (555) 000-1111",
			AgentName:       "Mike (Sales)",
			AgentType:       types.AgentSales,
			DurationSeconds: 0,
			Status:          types.StatusMissed,
			Timestamp:       now.Add(-26 * time.Hour),
			Analysis:        NotRun(),
		},
	}
}
