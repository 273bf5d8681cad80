package config

const (
	defaultDataDir              = "~/.local/share/intake"
	defaultLogDir               = "~/.local/share/intake/logs"
	defaultChatRequestTimeout   = 15
	defaultChatMaxRetryAttempts = 4
	defaultAcceptEmoji          = "✅"
	defaultDenyEmoji            = "❌"
	defaultSourceTimeout        = 30
	defaultSourcePollInterval   = 60
	defaultReactionPollInterval = 30
	defaultErrorRetryInterval   = 15
	defaultReminderAfterHours   = 48
	defaultReminderEveryHours   = 24
	defaultNtfyTimeout          = 10
	defaultAPIBind              = "127.0.0.1:7312"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"

	defaultAcceptTemplate   = "🎉 {user} has been accepted to {track}! (application {application_id})"
	defaultDenyTemplate     = "Your application for {track} (id {application_id}) was not approved this time. Reason: {reason}"
	defaultReminderTemplate = "{reviewer_mention} application {application_id} for {track} is still awaiting votes."
	defaultReopenTemplate   = "Application {application_id} for {track} has been reopened by {actor}: {reason}"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Chat: Chat{
			RequestTimeout:   defaultChatRequestTimeout,
			MaxRetryAttempts: defaultChatMaxRetryAttempts,
			AcceptEmoji:      defaultAcceptEmoji,
			DenyEmoji:        defaultDenyEmoji,
		},
		Source: Source{
			RequestTimeout: defaultSourceTimeout,
		},
		Templates: Templates{
			AcceptAnnouncement: defaultAcceptTemplate,
			DenyDM:             defaultDenyTemplate,
			Reminder:           defaultReminderTemplate,
			ReopenNotice:       defaultReopenTemplate,
		},
		Workflow: Workflow{
			SourcePollInterval:   defaultSourcePollInterval,
			ReactionPollInterval: defaultReactionPollInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			ReminderAfterHours:   defaultReminderAfterHours,
			ReminderEveryHours:   defaultReminderEveryHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Queue:          true,
			Decisions:      true,
			Errors:         true,
		},
		Daemon: Daemon{
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
