// Package texts holds the user-facing message templates as a plain data
// table keyed by scenario. It sits outside the core so transports can swap
// or localize copy without touching scheduling logic.
package texts

// Scenario selects a help template.
type Scenario string

const (
	ReminderCreate     Scenario = "reminder_create"
	AgendaCreate       Scenario = "agenda_create"
	ReminderList       Scenario = "reminder_list"
	ReminderCancel     Scenario = "reminder_cancel"
	ReminderReschedule Scenario = "reminder_reschedule"
	ReminderSettings   Scenario = "reminder_settings"
	ParseDateExamples  Scenario = "parse_date_examples"
	CronExamples       Scenario = "cron_examples"
)

var catalog = map[Scenario]string{
	ReminderCreate: `<date> <message> adds a reminder
* 8 hours buy more pumpkins
* 2023-11-30 15:00 befriend rats
* July 2, tuesday at 2pm, 8pm, 20 days, 4d, 2wk, ...
[room] pings the whole room, [every] makes the reminder recurring:
* every friday 3pm take out the trash
cron <expression> <message> schedules with crontab syntax:
* cron 30 9 * * mon-fri do something`,

	AgendaCreate: `agenda [room] <message> creates an agenda item.
Agenda items are like reminders but have no time, for things like to-do lists.`,

	ReminderList: `list [all] [my] [subscribed] lists reminders in a room
* all: reminders from every room
* my: only reminders you created
* subscribed: only reminders you are subscribed to`,

	ReminderCancel: `cancel <ID> deletes the reminder with the 4-letter ID shown by list
cancel <message> deletes a reminder beginning with <message>`,

	ReminderReschedule: `reply to a reminder ping with a new date to reschedule it`,

	ReminderSettings: `tz|timezone [new-timezone] views or sets your timezone
locale [new-locale] views or sets your locale`,

	ParseDateExamples: "Examples: Tuesday at noon, 2023-11-30 10:15 pm, July 2, 6 hours, 8pm, 4d, 2wk",

	CronExamples: `*   any value
,   value list separator
-   range of values
/   step

minute (0-59), hour (0-23), day of month (1-31), month (1-12), weekday (0-6, Sunday first)

30 9 * * *              Every day at 9:30am
0/30 9-17 * * mon-fri   Every 30 minutes from 9am to 5pm, Monday through Friday
0 14 1,16 * *           2:00pm on the 1st and 16th day of the month
0 0 1-7 * mon           First Monday of the month at midnight`,
}

// Get returns the template for a scenario, or "" when none exists.
func Get(s Scenario) string { return catalog[s] }
