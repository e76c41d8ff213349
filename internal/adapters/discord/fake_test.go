package discord

import (
	"errors"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	logging "github.com/okian/duelist/pkg/logger"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
	_ = logging.SetLevelString("error")
}

type sentMessage struct {
	ChannelID  string
	Content    string
	Components []discordgo.MessageComponent
}

type roleCall struct {
	Op, UserID, RoleID string
}

// fakeAPI records every call the adapter makes.
type fakeAPI struct {
	mu        sync.Mutex
	created   []discordgo.GuildChannelCreateData
	deleted   []string
	messages  []sentMessage
	roles     []roleCall
	responses []*discordgo.InteractionResponse
	edits     []string
	commands  []*discordgo.ApplicationCommand
	nextID    int
	failSends bool
}

var errPlatform = errors.New("discord unavailable")

func (f *fakeAPI) GuildChannelCreateComplex(_ string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	f.nextID++
	return &discordgo.Channel{ID: "chan-" + strconv.Itoa(f.nextID), Name: data.Name}, nil
}

func (f *fakeAPI) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content})
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return nil, errPlatform
	}
	f.messages = append(f.messages, sentMessage{ChannelID: channelID, Content: data.Content, Components: data.Components})
	return &discordgo.Message{ChannelID: channelID, Content: data.Content}, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, roleCall{Op: "add", UserID: userID, RoleID: roleID})
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, roleCall{Op: "remove", UserID: userID, RoleID: roleID})
	return nil
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeAPI) InteractionResponseEdit(_ *discordgo.Interaction, newresp *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if newresp.Content != nil {
		f.edits = append(f.edits, *newresp.Content)
	}
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) ApplicationCommandBulkOverwrite(_, _ string, commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = commands
	return commands, nil
}

func testConfig() Config {
	return Config{
		AppID:              "app",
		GuildID:            "guild",
		BotUserID:          "bot",
		ChallengeChannelID: "room",
		DuelsCategoryID:    "duels",
		StaffRoleIDs:       []string{"staff"},
		RankRoleIDs: map[string]string{
			"Initiate": "role-initiate",
			"Duelist":  "role-duelist",
		},
		RefusalPenalty: 2,
	}
}
