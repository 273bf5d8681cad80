package chat

import "context"

// Message is a published chat message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Thread is a discussion thread attached to a message.
type Thread struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// Channel describes a resolvable channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is a guild member as seen by reviewers' eligibility checks.
type Member struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Bot         bool     `json:"bot"`
	RoleIDs     []string `json:"role_ids"`
}

// Embed is the single styled block carried on application messages. Status
// transitions recolor it in place.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// Field is one labeled value inside an embed.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Client is the platform surface the engine depends on. Implementations must
// tag failures with the services sentinel errors.
type Client interface {
	// SendMessage publishes content (with optional embeds) to a channel.
	SendMessage(ctx context.Context, channelID, content string, embeds ...Embed) (*Message, error)
	// ReplyMessage posts a reply referencing an existing message.
	ReplyMessage(ctx context.Context, channelID, messageID, content string) (*Message, error)
	// AddReaction attaches an emoji reaction, retrying on rate limits.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	// ReactionUsers lists the distinct users who reacted with emoji.
	ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]Member, error)
	// CreateThread opens a discussion thread on a message.
	CreateThread(ctx context.Context, channelID, messageID, name string) (*Thread, error)
	// ArchiveThread archives a discussion thread.
	ArchiveThread(ctx context.Context, threadID string) error
	// Channel resolves channel metadata; not-found is tagged ErrNotFound.
	Channel(ctx context.Context, channelID string) (*Channel, error)
	// ChannelViewers lists members with view access to a channel.
	ChannelViewers(ctx context.Context, channelID string) ([]Member, error)
	// Member fetches one guild member; missing members are tagged ErrNotFound.
	Member(ctx context.Context, userID string) (*Member, error)
	// AddMemberRole grants a role; permission failures are tagged ErrPermission.
	AddMemberRole(ctx context.Context, userID, roleID string) error
	// SendDM delivers a direct message to a user.
	SendDM(ctx context.Context, userID, content string) error
	// RecolorMessage updates the color of the first embed on a message.
	RecolorMessage(ctx context.Context, channelID, messageID string, color int) error
}

// Embed colors for application lifecycle states.
const (
	ColorPending  = 0xF1C40F
	ColorAccepted = 0x2ECC71
	ColorDenied   = 0xE74C3C
	ColorClosed   = 0x95A5A6
)

// StatusColor maps a lifecycle status name to its embed color.
func StatusColor(status string) int {
	switch status {
	case "accepted":
		return ColorAccepted
	case "denied":
		return ColorDenied
	case "closed":
		return ColorClosed
	default:
		return ColorPending
	}
}
