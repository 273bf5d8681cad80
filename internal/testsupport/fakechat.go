package testsupport

import (
	"context"
	"fmt"
	"sync"

	"intake/internal/services"
	"intake/internal/services/chat"
)

// SentMessage records one SendMessage or ReplyMessage call.
type SentMessage struct {
	ChannelID string
	ReplyTo   string
	Content   string
	Embeds    []chat.Embed
}

// ReactionCall records one AddReaction call.
type ReactionCall struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// RoleGrant records one AddMemberRole call.
type RoleGrant struct {
	UserID string
	RoleID string
}

// RecolorCall records one RecolorMessage call.
type RecolorCall struct {
	ChannelID string
	MessageID string
	Color     int
}

// DMCall records one SendDM call.
type DMCall struct {
	UserID  string
	Content string
}

// FakeChat is an in-memory chat.Client that records every call and lets
// tests inject failures per operation.
type FakeChat struct {
	mu sync.Mutex

	Messages  []SentMessage
	Reactions []ReactionCall
	Threads   []string
	Archived  []string
	Grants    []RoleGrant
	DMs       []DMCall
	Recolors  []RecolorCall

	// Members known to the guild; a lookup for an absent id returns
	// services.ErrNotFound like the real API.
	Members map[string]chat.Member
	// Viewers per channel id.
	Viewers map[string][]chat.Member
	// Reactors keyed by messageID+"|"+emoji.
	Reactors map[string][]chat.Member

	SendErr    map[string]error // keyed by channel id
	ReactErr   error
	ThreadErr  error
	ArchiveErr error
	GrantErr   map[string]error // keyed by role id
	DMErr      error
	RecolorErr error

	nextID int
}

// NewFakeChat returns an empty fake ready for use.
func NewFakeChat() *FakeChat {
	return &FakeChat{
		Members:  map[string]chat.Member{},
		Viewers:  map[string][]chat.Member{},
		Reactors: map[string][]chat.Member{},
		SendErr:  map[string]error{},
		GrantErr: map[string]error{},
	}
}

// AddMember registers a guild member.
func (f *FakeChat) AddMember(member chat.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[member.ID] = member
}

// SetViewers sets the channel's viewer list.
func (f *FakeChat) SetViewers(channelID string, members ...chat.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Viewers[channelID] = members
}

// SetReactors sets the users who reacted with emoji on a message.
func (f *FakeChat) SetReactors(messageID, emoji string, members ...chat.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reactors[messageID+"|"+emoji] = members
}

func (f *FakeChat) SendMessage(ctx context.Context, channelID, content string, embeds ...chat.Embed) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SendErr[channelID]; err != nil {
		return nil, err
	}
	f.nextID++
	msg := &chat.Message{ID: fmt.Sprintf("msg-%d", f.nextID), ChannelID: channelID}
	f.Messages = append(f.Messages, SentMessage{ChannelID: channelID, Content: content, Embeds: embeds})
	return msg, nil
}

func (f *FakeChat) ReplyMessage(ctx context.Context, channelID, messageID, content string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SendErr[channelID]; err != nil {
		return nil, err
	}
	f.nextID++
	msg := &chat.Message{ID: fmt.Sprintf("msg-%d", f.nextID), ChannelID: channelID}
	f.Messages = append(f.Messages, SentMessage{ChannelID: channelID, ReplyTo: messageID, Content: content})
	return msg, nil
}

func (f *FakeChat) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReactErr != nil {
		return f.ReactErr
	}
	f.Reactions = append(f.Reactions, ReactionCall{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *FakeChat) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]chat.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reactors[messageID+"|"+emoji], nil
}

func (f *FakeChat) CreateThread(ctx context.Context, channelID, messageID, name string) (*chat.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ThreadErr != nil {
		return nil, f.ThreadErr
	}
	f.nextID++
	thread := &chat.Thread{ID: fmt.Sprintf("thread-%d", f.nextID), Name: name}
	f.Threads = append(f.Threads, thread.ID)
	return thread, nil
}

func (f *FakeChat) ArchiveThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ArchiveErr != nil {
		return f.ArchiveErr
	}
	f.Archived = append(f.Archived, threadID)
	return nil
}

func (f *FakeChat) Channel(ctx context.Context, channelID string) (*chat.Channel, error) {
	return &chat.Channel{ID: channelID, Name: channelID}, nil
}

func (f *FakeChat) ChannelViewers(ctx context.Context, channelID string) ([]chat.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Viewers[channelID], nil
}

func (f *FakeChat) Member(ctx context.Context, userID string) (*chat.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.Members[userID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "chat", "member", "unknown member "+userID, nil)
	}
	return &member, nil
}

func (f *FakeChat) AddMemberRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.GrantErr[roleID]; err != nil {
		return err
	}
	f.Grants = append(f.Grants, RoleGrant{UserID: userID, RoleID: roleID})
	return nil
}

func (f *FakeChat) SendDM(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DMErr != nil {
		return f.DMErr
	}
	f.DMs = append(f.DMs, DMCall{UserID: userID, Content: content})
	return nil
}

func (f *FakeChat) RecolorMessage(ctx context.Context, channelID, messageID string, color int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RecolorErr != nil {
		return f.RecolorErr
	}
	f.Recolors = append(f.Recolors, RecolorCall{ChannelID: channelID, MessageID: messageID, Color: color})
	return nil
}

// MessagesTo returns the recorded sends to one channel.
func (f *FakeChat) MessagesTo(channelID string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, msg := range f.Messages {
		if msg.ChannelID == channelID {
			out = append(out, msg)
		}
	}
	return out
}
