package telegram

import (
	"fmt"
	"html"
	"strings"

	"remindbot/internal/remind"
	"remindbot/internal/store"
)

// renderNotification builds the HTML body of a reminder ping: mention pills
// for the subscribers (or a bold room-wide marker), then the message.
func renderNotification(n remind.Notification) string {
	var b strings.Builder
	if n.RoomWide {
		b.WriteString("<b>@room</b>")
	} else {
		for i, uid := range n.Recipients {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(pill(uid, ""))
		}
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	if msg := strings.TrimSpace(n.Message); msg != "" {
		b.WriteString(html.EscapeString(msg))
	} else {
		b.WriteString("⏰") // bare ping for empty-message reminders
	}
	return b.String()
}

// pill renders a tappable user mention. Telegram resolves tg://user links
// for numeric ids; the label falls back to the id when no name is known.
func pill(userID, name string) string {
	if name == "" {
		name = userID
	}
	return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, html.EscapeString(userID), html.EscapeString(name))
}

// renderReminderLine is one row of a list reply.
func renderReminderLine(r *store.Reminder, when string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> ", remind.ShortID(r.ID))
	switch {
	case r.IsAgenda:
		b.WriteString("(agenda) ")
	case r.CronSpec != "":
		fmt.Fprintf(&b, "(cron <code>%s</code>, next %s) ", html.EscapeString(r.CronSpec), html.EscapeString(when))
	case r.RecurPhrase != "":
		fmt.Fprintf(&b, "(every %s, next %s) ", html.EscapeString(r.RecurPhrase), html.EscapeString(when))
	default:
		fmt.Fprintf(&b, "(%s) ", html.EscapeString(when))
	}
	b.WriteString(html.EscapeString(r.Message))
	return b.String()
}
