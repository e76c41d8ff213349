package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/types"
	"github.com/okian/duelist/pkg/logger"
)

const interactionTimeout = 30 * time.Second

// Engine is the duel service as seen from Discord interactions.
type Engine interface {
	CreateDuel(ctx context.Context, challenger, opponent model.Participant) (types.Duel, error)
	Dispatch(ctx context.Context, sessionID string, ev duel.Event) (types.Outcome, error)
}

// Handler routes Discord interactions to the engine.
type Handler struct {
	api    API
	cfg    Config
	engine Engine
	logger logger.Logger
}

// NewHandler creates a Handler. Register HandleInteraction with
// session.AddHandler.
func NewHandler(api API, cfg Config, engine Engine) *Handler {
	return &Handler{
		api:    api,
		cfg:    cfg,
		engine: engine,
		logger: logger.Get().Named("discord"),
	}
}

// HandleInteraction is the discordgo event handler entry point.
func (h *Handler) HandleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == challengeCommand {
			h.handleChallenge(ctx, i)
		}
	case discordgo.InteractionMessageComponent:
		h.handleButton(ctx, i)
	default:
		return
	}
}

func displayName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func participant(u *discordgo.User, m *discordgo.Member) (model.Participant, error) {
	if u == nil {
		return model.Participant{}, errors.New("interaction has no user")
	}
	id, err := model.ParseID(u.ID)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{ID: id, Label: displayName(u, m)}, nil
}

// invoker returns the member who triggered the interaction.
func invoker(i *discordgo.InteractionCreate) (model.Participant, error) {
	if i.Member != nil {
		return participant(i.Member.User, i.Member)
	}
	return participant(i.User, nil)
}

// resolvedUser looks up a user option in the interaction's resolved data.
func resolvedUser(data discordgo.ApplicationCommandInteractionData, userID string) (model.Participant, error) {
	var (
		u *discordgo.User
		m *discordgo.Member
	)
	if data.Resolved != nil {
		u = data.Resolved.Users[userID]
		m = data.Resolved.Members[userID]
	}
	if u == nil {
		u = &discordgo.User{ID: userID}
	}
	return participant(u, m)
}

func (h *Handler) respondEphemeral(ctx context.Context, i *discordgo.InteractionCreate, msg string) {
	err := h.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.logger.Warn(ctx, "interaction response failed", logger.Error(err))
	}
}

func (h *Handler) editResponse(ctx context.Context, i *discordgo.InteractionCreate, msg string) {
	if _, err := h.api.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}, discordgo.WithContext(ctx)); err != nil {
		h.logger.Warn(ctx, "interaction response edit failed", logger.Error(err))
	}
}

func (h *Handler) handleChallenge(ctx context.Context, i *discordgo.InteractionCreate) {
	if h.cfg.ChallengeChannelID != "" && i.ChannelID != h.cfg.ChallengeChannelID {
		h.respondEphemeral(ctx, i, "This command can only be used in "+channelMention(h.cfg.ChallengeChannelID))
		return
	}

	data := i.ApplicationCommandData()
	var opponentID, challengerID string
	for _, opt := range data.Options {
		switch opt.Name {
		case "opponent":
			opponentID = fmt.Sprint(opt.Value)
		case "challenger":
			challengerID = fmt.Sprint(opt.Value)
		}
	}
	if opponentID == "" {
		h.respondEphemeral(ctx, i, "An opponent is required.")
		return
	}

	opponent, err := resolvedUser(data, opponentID)
	if err != nil {
		h.respondEphemeral(ctx, i, "Unknown opponent.")
		return
	}
	var challenger model.Participant
	if challengerID == "" {
		challenger, err = invoker(i)
	} else {
		challenger, err = resolvedUser(data, challengerID)
	}
	if err != nil {
		h.respondEphemeral(ctx, i, "Unknown challenger.")
		return
	}

	// Channel creation can outlast the interaction deadline.
	if err := h.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx)); err != nil {
		h.logger.Warn(ctx, "interaction defer failed", logger.Error(err))
	}

	d, err := h.engine.CreateDuel(ctx, challenger, opponent)
	if err != nil {
		h.logger.Info(ctx, "challenge rejected",
			logger.Uint64("challenger", uint64(challenger.ID)),
			logger.Uint64("opponent", uint64(opponent.ID)),
			logger.Error(err))
		h.editResponse(ctx, i, createErrorMessage(err))
		return
	}

	msg := "Duel created"
	if d.VenueID != "" {
		msg += ": " + channelMention(d.VenueID)
	}
	h.editResponse(ctx, i, msg)
}

func createErrorMessage(err error) string {
	switch {
	case errors.Is(err, duel.ErrSelfChallenge):
		return "You cannot challenge yourself."
	case errors.Is(err, duel.ErrDuplicateDuel):
		return "These duelists already have a pending duel."
	case errors.Is(err, duel.ErrParticipantBusy):
		return "One of the duelists already has a pending duel."
	case errors.Is(err, duel.ErrResolvedBeforeReady):
		return "The duel was closed before it could start."
	default:
		return "Could not create the duel. Please try again."
	}
}

func (h *Handler) handleButton(ctx context.Context, i *discordgo.InteractionCreate) {
	cid, err := parseComponentID(i.MessageComponentData().CustomID)
	if err != nil {
		h.logger.Warn(ctx, "unknown component", logger.Error(err))
		return
	}
	actor, err := invoker(i)
	if err != nil {
		h.respondEphemeral(ctx, i, "Could not identify you.")
		return
	}

	var ev duel.Event
	switch cid.Action {
	case actionWin:
		ev = duel.DeclareWin(cid.Side)
	case actionRefuse:
		ev = duel.Refuse(actor)
	case actionCancel:
		ev = duel.Cancel(actor)
	}

	if _, err := h.engine.Dispatch(ctx, cid.SessionID, ev); err != nil {
		h.respondEphemeral(ctx, i, dispatchErrorMessage(err))
		return
	}

	// Announcements are posted by the notifier; only acknowledge the click.
	if err := h.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx)); err != nil {
		h.logger.Warn(ctx, "interaction ack failed", logger.Error(err))
	}
}

func dispatchErrorMessage(err error) string {
	switch {
	case errors.Is(err, duel.ErrAlreadyResolved):
		return "This duel has already been resolved."
	case errors.Is(err, duel.ErrUnknownSession):
		return "This duel no longer exists."
	case errors.Is(err, duel.ErrNotParticipant):
		return "Only the duelists can refuse this challenge."
	default:
		return "Could not record the result. Please try again."
	}
}
