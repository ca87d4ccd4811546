package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/remind"
	"remindbot/internal/store"
	"remindbot/internal/texts"
	"remindbot/pkg/logx"
)

func (a *Adapter) registerHandlers(ctx context.Context) {
	a.bot.Handle("/remind", a.handleRemind(ctx))
	a.bot.Handle("/r", a.handleRemind(ctx))
	a.bot.Handle("/cron", a.handleCron(ctx))
	a.bot.Handle("/agenda", a.handleAgenda(ctx))
	a.bot.Handle("/list", a.handleList(ctx))
	a.bot.Handle("/cancel", a.handleCancel(ctx))
	a.bot.Handle("/subscribe", a.handleSubscribe(ctx, true))
	a.bot.Handle("/unsubscribe", a.handleSubscribe(ctx, false))
	a.bot.Handle("/tz", a.handleTimezone(ctx))
	a.bot.Handle("/timezone", a.handleTimezone(ctx))
	a.bot.Handle("/locale", a.handleLocale(ctx))
	a.bot.Handle("/help", a.handleHelp)
	a.bot.Handle(tele.OnText, a.handleReply(ctx))
}

func chatID(c tele.Context) string   { return strconv.FormatInt(c.Chat().ID, 10) }
func senderID(c tele.Context) string { return strconv.FormatInt(c.Sender().ID, 10) }

// eventID is the stable reminder id derived from the originating message.
func eventID(m *tele.Message) string {
	return fmt.Sprintf("%d:%d", m.Chat.ID, m.ID)
}

// popFlag removes a leading flag word from args if present.
func popFlag(args *[]string, word string) bool {
	if len(*args) > 0 && strings.EqualFold((*args)[0], word) {
		*args = (*args)[1:]
		return true
	}
	return false
}

func (a *Adapter) replyHTML(c tele.Context, text string) error {
	return c.Reply(text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

// sendConfirmation replies and records the confirmation message as the
// reminder's reply anchor for reschedules and subscriptions.
func (a *Adapter) sendConfirmation(ctx context.Context, c tele.Context, id, text string) error {
	sent, err := a.bot.Reply(c.Message(), text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return err
	}
	if err := a.svc.SetConfirmationRef(ctx, id, strconv.Itoa(sent.ID)); err != nil {
		a.log.Warn("confirmation ref not recorded", logx.String("id", remind.ShortID(id)), logx.Err(err))
	}
	return nil
}

// replyErr renders engine errors for the chat. Syntax errors carry their
// usage examples; anything else is logged and answered generically.
func (a *Adapter) replyErr(c tele.Context, err error) error {
	var se *remind.SyntaxError
	switch {
	case errors.As(err, &se):
		text := html.EscapeString(se.Message)
		if se.Examples != "" {
			text += "\n<pre>" + html.EscapeString(se.Examples) + "</pre>"
		}
		return a.replyHTML(c, text)
	case errors.Is(err, remind.ErrRateLimited):
		return a.replyHTML(c, "Too many reminders at once, give it a rest.")
	case errors.Is(err, store.ErrNotFound):
		return a.replyHTML(c, "I don't know that reminder.")
	default:
		a.log.Error("command failed", logx.Err(err))
		return a.replyHTML(c, "Something went wrong, try again.")
	}
}

func (a *Adapter) handleRemind(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		m := c.Message()
		args := strings.Fields(m.Payload)
		roomWide := popFlag(&args, "room")
		every := popFlag(&args, "every")
		if len(args) == 0 {
			return a.replyHTML(c, "<pre>"+html.EscapeString(texts.Get(texts.ReminderCreate))+"</pre>")
		}
		r, err := a.svc.Create(ctx, remind.CreateRequest{
			ID:        eventID(m),
			RoomID:    chatID(c),
			CreatorID: senderID(c),
			Text:      strings.Join(args, " "),
			Every:     every,
			RoomWide:  roomWide,
			ReplyTo:   strconv.Itoa(m.ID),
		})
		if err != nil {
			return a.replyErr(c, err)
		}
		a.poker.Poke()
		return a.sendConfirmation(ctx, c, r.ID, confirmationText(a.svc, senderID(c), r))
	}
}

func (a *Adapter) handleCron(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		m := c.Message()
		args := strings.Fields(m.Payload)
		roomWide := popFlag(&args, "room")
		expr, message, ok := splitCron(args)
		if !ok {
			return a.replyHTML(c, "<pre>"+html.EscapeString(texts.Get(texts.CronExamples))+"</pre>")
		}
		r, err := a.svc.Create(ctx, remind.CreateRequest{
			ID:        eventID(m),
			RoomID:    chatID(c),
			CreatorID: senderID(c),
			Text:      message,
			CronExpr:  expr,
			RoomWide:  roomWide,
			ReplyTo:   strconv.Itoa(m.ID),
		})
		if err != nil {
			return a.replyErr(c, err)
		}
		a.poker.Poke()
		return a.sendConfirmation(ctx, c, r.ID, confirmationText(a.svc, senderID(c), r))
	}
}

// splitCron separates the cron expression from the message: a leading
// descriptor ("@daily") is one token, otherwise the first five tokens are
// the schedule fields.
func splitCron(args []string) (expr, message string, ok bool) {
	if len(args) == 0 {
		return "", "", false
	}
	if strings.HasPrefix(args[0], "@") {
		return args[0], strings.Join(args[1:], " "), true
	}
	if len(args) < 5 {
		return "", "", false
	}
	return strings.Join(args[:5], " "), strings.Join(args[5:], " "), true
}

func (a *Adapter) handleAgenda(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		m := c.Message()
		args := strings.Fields(m.Payload)
		roomWide := popFlag(&args, "room")
		if len(args) == 0 {
			return a.replyHTML(c, "<pre>"+html.EscapeString(texts.Get(texts.AgendaCreate))+"</pre>")
		}
		r, err := a.svc.CreateAgenda(ctx, remind.CreateRequest{
			ID:        eventID(m),
			RoomID:    chatID(c),
			CreatorID: senderID(c),
			Text:      strings.Join(args, " "),
			RoomWide:  roomWide,
			ReplyTo:   strconv.Itoa(m.ID),
		})
		if err != nil {
			return a.replyErr(c, err)
		}
		return a.sendConfirmation(ctx, c, r.ID,
			fmt.Sprintf("Added <b>%s</b> to the agenda.", remind.ShortID(r.ID)))
	}
}

func (a *Adapter) handleList(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		args := strings.Fields(c.Message().Payload)
		opts := remind.ListOptions{RoomID: chatID(c)}
		for _, arg := range args {
			switch strings.ToLower(arg) {
			case "all":
				opts.AllRooms = true
			case "my", "mine":
				opts.CreatorID = senderID(c)
			case "subscribed":
				opts.Subscriber = senderID(c)
			default:
				return a.replyHTML(c, "<pre>"+html.EscapeString(texts.Get(texts.ReminderList))+"</pre>")
			}
		}
		rs, err := a.svc.List(ctx, opts)
		if err != nil {
			return a.replyErr(c, err)
		}
		if len(rs) == 0 {
			return a.replyHTML(c, "Nothing scheduled.")
		}
		lines := make([]string, 0, len(rs))
		for _, r := range rs {
			when := ""
			if r.StartTime != nil {
				when = a.svc.FormatTime(senderID(c), *r.StartTime)
			}
			lines = append(lines, renderReminderLine(r, when))
		}
		return a.replyHTML(c, strings.Join(lines, "\n"))
	}
}

func (a *Adapter) handleCancel(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		query := strings.TrimSpace(c.Message().Payload)
		if query == "" {
			return a.replyHTML(c, "<pre>"+html.EscapeString(texts.Get(texts.ReminderCancel))+"</pre>")
		}
		r, err := a.svc.CancelMatching(ctx, chatID(c), query)
		if err != nil {
			return a.replyErr(c, err)
		}
		return a.replyHTML(c, fmt.Sprintf("Cancelled <b>%s</b> %s",
			remind.ShortID(r.ID), html.EscapeString(r.Message)))
	}
}

func (a *Adapter) handleSubscribe(ctx context.Context, on bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		m := c.Message()
		if m.ReplyTo == nil {
			return a.replyHTML(c, "Reply to a reminder confirmation to subscribe.")
		}
		r, err := a.svc.FindByConfirmationRef(ctx, chatID(c), strconv.Itoa(m.ReplyTo.ID))
		if err != nil {
			return a.replyErr(c, err)
		}
		if on {
			if err := a.svc.Subscribe(ctx, r.ID, senderID(c), strconv.Itoa(m.ID)); err != nil {
				return a.replyErr(c, err)
			}
			return a.replyHTML(c, fmt.Sprintf("Subscribed to <b>%s</b>.", remind.ShortID(r.ID)))
		}
		if err := a.svc.Unsubscribe(ctx, r.ID, senderID(c)); err != nil {
			return a.replyErr(c, err)
		}
		return a.replyHTML(c, fmt.Sprintf("Unsubscribed from <b>%s</b>.", remind.ShortID(r.ID)))
	}
}

func (a *Adapter) handleTimezone(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		arg := strings.TrimSpace(c.Message().Payload)
		if arg == "" {
			_, tz := a.svc.Settings(senderID(c))
			return a.replyHTML(c, "Your timezone is <b>"+html.EscapeString(tz)+"</b>.")
		}
		tz, err := a.svc.SetTimezone(ctx, senderID(c), arg)
		if err != nil {
			return a.replyErr(c, err)
		}
		return a.replyHTML(c, "Timezone set to <b>"+html.EscapeString(tz)+"</b>.")
	}
}

func (a *Adapter) handleLocale(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		arg := strings.TrimSpace(c.Message().Payload)
		if arg == "" {
			loc, _ := a.svc.Settings(senderID(c))
			return a.replyHTML(c, "Your locale is <b>"+html.EscapeString(loc)+"</b>.")
		}
		loc, err := a.svc.SetLocale(ctx, senderID(c), arg)
		if err != nil {
			return a.replyErr(c, err)
		}
		return a.replyHTML(c, "Locale set to <b>"+html.EscapeString(loc)+"</b>.")
	}
}

func (a *Adapter) handleHelp(c tele.Context) error {
	sections := []texts.Scenario{
		texts.ReminderCreate, texts.AgendaCreate, texts.ReminderList,
		texts.ReminderCancel, texts.ReminderReschedule, texts.ReminderSettings,
	}
	var b strings.Builder
	for _, s := range sections {
		b.WriteString("<pre>")
		b.WriteString(html.EscapeString(texts.Get(s)))
		b.WriteString("</pre>\n")
	}
	return a.replyHTML(c, b.String())
}

// handleReply reschedules a reminder when a user replies to its
// confirmation message with a new date.
func (a *Adapter) handleReply(ctx context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		m := c.Message()
		if m.ReplyTo == nil || m.ReplyTo.Sender == nil || a.bot.Me == nil ||
			m.ReplyTo.Sender.ID != a.bot.Me.ID {
			return nil
		}
		r, err := a.svc.FindByConfirmationRef(ctx, chatID(c), strconv.Itoa(m.ReplyTo.ID))
		if errors.Is(err, store.ErrNotFound) {
			return nil // reply to some other bot message
		}
		if err != nil {
			return a.replyErr(c, err)
		}
		r, err = a.svc.Reschedule(ctx, r.ID, senderID(c), m.Text)
		if err != nil {
			return a.replyErr(c, err)
		}
		a.poker.Poke()
		return a.sendConfirmation(ctx, c, r.ID, confirmationText(a.svc, senderID(c), r))
	}
}

func confirmationText(svc *remind.Service, userID string, r *store.Reminder) string {
	when := ""
	if r.StartTime != nil {
		when = svc.FormatTime(userID, *r.StartTime)
	}
	switch {
	case r.CronSpec != "":
		return fmt.Sprintf("Scheduled <b>%s</b> with <code>%s</code>, next %s.",
			remind.ShortID(r.ID), html.EscapeString(r.CronSpec), html.EscapeString(when))
	case r.RecurPhrase != "":
		return fmt.Sprintf("I'll remind you every %s, starting %s.",
			html.EscapeString(r.RecurPhrase), html.EscapeString(when))
	default:
		return "I'll remind you " + html.EscapeString(when) + "."
	}
}
