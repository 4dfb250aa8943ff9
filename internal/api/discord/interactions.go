package discord

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/app/selection"
)

func (b *Bot) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer recoverHandler("interaction", func() {
		b.ephemeral(i, errorEmbed(genericError))
	})

	if i.Type != discordgo.InteractionMessageComponent || i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}
	userID := i.Member.User.ID
	if !b.throttle.Allow(userID) {
		b.ephemeral(i, errorEmbed(errorMessage(errRateLimited)))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	inv := b.invocation(i.GuildID, i.ChannelID, userID)
	data := i.MessageComponentData()

	var err error
	if kind, flowID, ok := parsePickID(data.CustomID); ok {
		err = b.pick(ctx, i, inv, kind, flowID, data.Values)
	} else {
		err = b.button(ctx, i, inv, data.CustomID)
	}
	if err != nil {
		if unexpected(err) {
			zlog.Error().Msgf("interaction failed: id=%s guild=%s error=%+v", data.CustomID, i.GuildID, err)
		}
		b.ephemeral(i, errorEmbed(errorMessage(err)))
	}
}

// button handles the now-playing controls.
func (b *Bot) button(ctx context.Context, i *discordgo.InteractionCreate, inv player.Invocation, id string) error {
	switch id {
	case buttonPause:
		paused, err := b.player.TogglePause(ctx, inv)
		if err != nil {
			return err
		}
		text := "▶️ Resumed!"
		if paused {
			text = "⏸️ Paused!"
		}
		b.ephemeral(i, infoEmbed(text))

		if i.Message != nil {
			components := controls(paused, false)
			edit := discordgo.NewMessageEdit(i.Message.ChannelID, i.Message.ID)
			edit.Components = &components
			if _, err := b.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
				zlog.Debug().Msgf("failed to update controls: message=%s error=%v", i.Message.ID, err)
			}
		}
		return nil

	case buttonSkip:
		if _, err := b.player.Skip(ctx, inv); err != nil {
			return err
		}
		b.ephemeral(i, infoEmbed("⏭️ Skipped!"))
		return nil

	case buttonStop:
		if err := b.player.Stop(ctx, inv); err != nil {
			return err
		}
		b.ephemeral(i, infoEmbed("⏹️ Stopped!"))
		return nil
	}

	return errors.Wrapf(errUnknownComponent, "id=%s", id)
}

// pick resolves a selection menu choice and replaces the menu with the result.
func (b *Bot) pick(ctx context.Context, i *discordgo.InteractionCreate, inv player.Invocation, kind, flowID string, values []string) error {
	if len(values) == 0 {
		return errors.Wrapf(selection.ErrInvalidOption, "flow=%s", flowID)
	}
	index, err := strconv.Atoi(values[0])
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "flow=%s value=%s", flowID, values[0]), selection.ErrInvalidOption)
	}

	var embed *discordgo.MessageEmbed
	switch kind {
	case player.KindSearch:
		res, err := b.player.ChooseSearch(ctx, inv, flowID, index)
		if err != nil {
			return err
		}
		embed = addedEmbed(res)
	case player.KindFilter:
		preset, err := b.player.ChooseFilter(ctx, inv, flowID, index)
		if err != nil {
			return err
		}
		embed = infoEmbed("🎛️ Applied filter **" + preset.Label + "**")
	default:
		return errors.Wrapf(selection.ErrFlowNotFound, "kind=%s", kind)
	}

	err = b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		zlog.Warn().Msgf("failed to update menu: flow=%s error=%v", flowID, err)
	}
	return nil
}

// ephemeral answers an interaction with a message only the user sees.
func (b *Bot) ephemeral(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		zlog.Warn().Msgf("failed to respond to interaction: id=%s error=%v", i.ID, err)
	}
}
