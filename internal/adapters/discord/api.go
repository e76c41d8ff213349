// Package discord binds the duel engine to a Discord guild: the /challenge
// command, the duel venue buttons, venue channels, announcements and rank
// roles.
package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// API is the subset of *discordgo.Session the adapter uses.
type API interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

var _ API = (*discordgo.Session)(nil)

// Config identifies the guild objects the adapter works with.
type Config struct {
	AppID              string
	GuildID            string
	BotUserID          string
	ChallengeChannelID string
	DuelsCategoryID    string
	StaffRoleIDs       []string
	// RankRoleIDs maps rank names to guild role IDs.
	RankRoleIDs    map[string]string
	RefusalPenalty int
}

// Sentinel kinds for adapter errors.
var (
	ErrUnmappedRank    = errors.New("no guild role configured for rank")
	ErrInvalidCustomID = errors.New("invalid duel component id")
)
