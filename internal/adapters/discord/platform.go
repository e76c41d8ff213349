package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/pkg/logger"
)

// venueAllow is granted to the bot, both duelists and staff on a venue.
const venueAllow = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionUseSlashCommands

// Platform implements the engine's chat-platform collaborators on Discord.
type Platform struct {
	api    API
	cfg    Config
	now    func() time.Time
	logger logger.Logger
}

var (
	_ duel.ChannelProvider = (*Platform)(nil)
	_ duel.Notifier        = (*Platform)(nil)
	_ duel.RoleAssigner    = (*Platform)(nil)
)

// NewPlatform creates a Platform for the guild in cfg.
func NewPlatform(api API, cfg Config) *Platform {
	return &Platform{
		api:    api,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Get().Named("discord"),
	}
}

func mention(id model.ID) string { return "<@" + id.String() + ">" }

func channelMention(id string) string { return "<#" + id + ">" }

// overwrites hides the venue from everyone except the bot, the duelists and
// staff. The @everyone role shares the guild's ID.
func (p *Platform) overwrites(challenger, opponent model.Participant) []*discordgo.PermissionOverwrite {
	ow := []*discordgo.PermissionOverwrite{
		{ID: p.cfg.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
	}
	for _, id := range []string{p.cfg.BotUserID, challenger.ID.String(), opponent.ID.String()} {
		if id == "" {
			continue
		}
		ow = append(ow, &discordgo.PermissionOverwrite{ID: id, Type: discordgo.PermissionOverwriteTypeMember, Allow: venueAllow})
	}
	for _, id := range p.cfg.StaffRoleIDs {
		ow = append(ow, &discordgo.PermissionOverwrite{ID: id, Type: discordgo.PermissionOverwriteTypeRole, Allow: venueAllow})
	}
	return ow
}

// CreateDuelVenue creates a private text channel for the duel.
func (p *Platform) CreateDuelVenue(ctx context.Context, challenger, opponent model.Participant) (model.Venue, error) {
	name := duel.VenueName(challenger, opponent, p.now())
	ch, err := p.api.GuildChannelCreateComplex(p.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             p.cfg.DuelsCategoryID,
		PermissionOverwrites: p.overwrites(challenger, opponent),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return model.Venue{}, fmt.Errorf("create venue channel: %w", err)
	}
	return model.Venue{ID: ch.ID, Name: name}, nil
}

// DeleteVenue deletes the venue channel.
func (p *Platform) DeleteVenue(ctx context.Context, venue model.Venue) error {
	if _, err := p.api.ChannelDelete(venue.ID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete venue channel %s: %w", venue.ID, err)
	}
	return nil
}

func (p *Platform) buttons(s duel.Snapshot) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    s.Challenger.Name() + " Wins",
				Style:    discordgo.SuccessButton,
				CustomID: componentID{Action: actionWin, SessionID: s.ID, Side: duel.ChallengerSide}.String(),
			},
			discordgo.Button{
				Label:    s.Opponent.Name() + " Wins",
				Style:    discordgo.SuccessButton,
				CustomID: componentID{Action: actionWin, SessionID: s.ID, Side: duel.OpponentSide}.String(),
			},
			discordgo.Button{
				Label:    fmt.Sprintf("Refuse challenge (-%dpts)", p.cfg.RefusalPenalty),
				Style:    discordgo.DangerButton,
				CustomID: componentID{Action: actionRefuse, SessionID: s.ID}.String(),
			},
			discordgo.Button{
				Label:    "Cancel challenge (only for legitimate use, no score change)",
				Style:    discordgo.PrimaryButton,
				CustomID: componentID{Action: actionCancel, SessionID: s.ID}.String(),
			},
		}},
	}
}

// AnnounceDuelCreated posts the result buttons and pings both duelists in
// the venue.
func (p *Platform) AnnounceDuelCreated(ctx context.Context, s duel.Snapshot) error {
	if s.Venue.IsZero() {
		return nil
	}
	_, err := p.api.ChannelMessageSendComplex(s.Venue.ID, &discordgo.MessageSend{
		Content:    mention(s.Challenger.ID) + " vs " + mention(s.Opponent.ID),
		Components: p.buttons(s),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("post duel controls: %w", err)
	}
	return nil
}

// outcomeMessages renders the venue line and the challenge room line.
func outcomeMessages(out duel.Outcome) (venue, room string) {
	switch out.Resolution {
	case duel.WinDeclared:
		loser, _ := out.Loser()
		return out.Winner.Name() + " wins!",
			mention(out.Winner.ID) + " wins against " + mention(loser.ID)
	case duel.Refused:
		return "Challenge refused!", mention(out.Actor.ID) + " refused a challenge"
	default:
		between := "The challenge between " + mention(out.Challenger.ID) + " and " + mention(out.Opponent.ID)
		switch {
		case out.Expired:
			return "Challenge expired!", between + " expired"
		case out.Actor.ID == 0:
			return "Challenge cancelled!", between + " was cancelled"
		}
		return "Challenge cancelled!", mention(out.Actor.ID) + " cancelled a challenge"
	}
}

// AnnounceOutcome posts the result in the venue and the challenge room.
func (p *Platform) AnnounceOutcome(ctx context.Context, out duel.Outcome) error {
	venueMsg, roomMsg := outcomeMessages(out)
	if !out.Venue.IsZero() {
		if _, err := p.api.ChannelMessageSend(out.Venue.ID, venueMsg, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("post outcome to venue: %w", err)
		}
	}
	return p.toRoom(ctx, roomMsg)
}

// AnnounceRankChange posts a promotion or demotion in the challenge room.
func (p *Platform) AnnounceRankChange(ctx context.Context, participant model.Participant, _, to rank.Rank) error {
	return p.toRoom(ctx, mention(participant.ID)+" is now "+to.Name+"!")
}

// AnnounceError reports a failed resolution in the venue.
func (p *Platform) AnnounceError(ctx context.Context, venue model.Venue, cause error) error {
	if venue.IsZero() {
		return nil
	}
	if _, err := p.api.ChannelMessageSend(venue.ID, "Something went wrong: "+cause.Error(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post error to venue: %w", err)
	}
	return nil
}

func (p *Platform) toRoom(ctx context.Context, msg string) error {
	if p.cfg.ChallengeChannelID == "" {
		p.logger.Debug(ctx, "no challenge room configured, announcement dropped", logger.String("message", msg))
		return nil
	}
	if _, err := p.api.ChannelMessageSend(p.cfg.ChallengeChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post to challenge room: %w", err)
	}
	return nil
}

// roleFor maps a rank to its guild role. With no mapping configured rank
// roles are disabled and ok is false with a nil error.
func (p *Platform) roleFor(r rank.Rank) (string, bool, error) {
	if len(p.cfg.RankRoleIDs) == 0 {
		return "", false, nil
	}
	id, ok := p.cfg.RankRoleIDs[r.Name]
	if !ok || id == "" {
		return "", false, fmt.Errorf("%w: %s", ErrUnmappedRank, r.Name)
	}
	return id, true, nil
}

// Assign grants the rank's role.
func (p *Platform) Assign(ctx context.Context, id model.ID, r rank.Rank) error {
	role, ok, err := p.roleFor(r)
	if !ok {
		return err
	}
	if err := p.api.GuildMemberRoleAdd(p.cfg.GuildID, id.String(), role, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", r.Name, id, err)
	}
	return nil
}

// Unassign removes the rank's role.
func (p *Platform) Unassign(ctx context.Context, id model.ID, r rank.Rank) error {
	role, ok, err := p.roleFor(r)
	if !ok {
		return err
	}
	if err := p.api.GuildMemberRoleRemove(p.cfg.GuildID, id.String(), role, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("unassign role %s from %s: %w", r.Name, id, err)
	}
	return nil
}
