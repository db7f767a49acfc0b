package worker

import (
	"fmt"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// optOutFooter is appended to every outbound message. Carrier compliance
// requires it on each send, not only the first.
const optOutFooter = "Reply STOP to unsubscribe."

// BuildBody renders the outbound message: greeting, deep link into the app,
// and the mandatory opt-out footer.
func BuildBody(mt domain.MessageType, deepLinkBase, userID string) string {
	link := fmt.Sprintf("%s/today?u=%s", deepLinkBase, userID)
	switch mt {
	case domain.MessageMorningNudge:
		return fmt.Sprintf("Good morning! Your plan for today is ready: %s %s", link, optOutFooter)
	case domain.MessageEveningReminder:
		return fmt.Sprintf("Evening check-in: you still have open tasks for today. Finish strong: %s %s", link, optOutFooter)
	}
	return fmt.Sprintf("%s %s", link, optOutFooter)
}
