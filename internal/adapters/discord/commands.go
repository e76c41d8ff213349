package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const challengeCommand = "challenge"

// Commands returns the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	dmPermission := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         challengeCommand,
			Description:  "Challenge a user to a duel",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "opponent",
					Description: "Opponent to challenge to a duel",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "challenger",
					Description: "Challenger to challenge the opponent (defaults to you)",
					Required:    false,
				},
			},
		},
	}
}

// RegisterCommands overwrites the guild's commands with Commands.
func RegisterCommands(ctx context.Context, api API, cfg Config) error {
	if _, err := api.ApplicationCommandBulkOverwrite(cfg.AppID, cfg.GuildID, Commands(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}
