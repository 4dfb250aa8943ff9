package discord

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/command"
	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
)

// reply is the answer to a command. attach binds the sent message to a
// selection flow and reports false when the flow already ended.
type reply struct {
	send   *discordgo.MessageSend
	attach func(ref presenter.Ref) bool
}

func embedReply(embed *discordgo.MessageEmbed) reply {
	return reply{send: &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}}
}

func infoReply(text string) reply {
	return embedReply(infoEmbed(text))
}

// parseCommand splits "<@bot> command args..." into the command token and
// its arguments. The mention must come first.
func parseCommand(content, botID string) (string, []string, bool) {
	fields := strings.Fields(content)
	if len(fields) < 2 {
		return "", nil, false
	}
	if fields[0] != "<@"+botID+">" && fields[0] != "<@!"+botID+">" {
		return "", nil, false
	}
	return strings.ToLower(fields[1]), fields[2:], true
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer recoverHandler("message", func() {
		b.send(m, embedReply(errorEmbed(genericError)))
	})

	if m.Author == nil || m.Author.Bot || m.GuildID == "" || s.State.User == nil {
		return
	}
	token, args, ok := parseCommand(m.Content, s.State.User.ID)
	if !ok {
		return
	}
	name, ok := command.Resolve(token)
	if !ok {
		return
	}

	if !b.throttle.Allow(m.Author.ID) {
		b.send(m, embedReply(errorEmbed(errorMessage(errRateLimited))))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	inv := b.invocation(m.GuildID, m.ChannelID, m.Author.ID)
	zlog.Debug().Msgf("command: name=%s guild=%s user=%s args=%d", name, m.GuildID, m.Author.ID, len(args))

	r, err := b.dispatch(ctx, m, inv, name, args)
	if err != nil {
		if unexpected(err) {
			zlog.Error().Msgf("command failed: name=%s guild=%s error=%+v", name, m.GuildID, err)
		} else {
			zlog.Debug().Msgf("command rejected: name=%s guild=%s error=%v", name, m.GuildID, err)
		}
		b.send(m, embedReply(errorEmbed(errorMessage(err))))
		return
	}
	b.send(m, r)
}

// send replies to m and binds the reply to a selection flow when needed.
func (b *Bot) send(m *discordgo.MessageCreate, r reply) {
	if r.send == nil {
		return
	}
	r.send.Reference = m.Reference()
	msg, err := b.session.ChannelMessageSendComplex(m.ChannelID, r.send)
	if err != nil {
		zlog.Warn().Msgf("failed to reply: channel=%s error=%v", m.ChannelID, err)
		return
	}
	if r.attach == nil {
		return
	}

	ref := presenter.Ref{ChannelID: msg.ChannelID, MessageID: msg.ID}
	if !r.attach(ref) {
		// The flow ended while the menu was being sent.
		components := []discordgo.MessageComponent{}
		edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
		edit.Components = &components
		if _, err := b.session.ChannelMessageEditComplex(edit); err != nil {
			zlog.Debug().Msgf("failed to detach menu: message=%s error=%v", ref.MessageID, err)
		}
	}
}

// dispatch runs one command and returns its reply.
func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate, inv player.Invocation, name command.Name, args []string) (reply, error) {
	query := strings.Join(args, " ")

	switch name {
	case command.Play:
		res, err := b.player.Play(ctx, inv, query)
		if err != nil {
			return reply{}, err
		}
		return embedReply(addedEmbed(res)), nil

	case command.Search:
		flow, err := b.player.Search(ctx, inv, query)
		if err != nil {
			return reply{}, err
		}
		return reply{send: searchMenu(flow), attach: flow.Attach}, nil

	case command.Pause:
		if err := b.player.Pause(ctx, inv); err != nil {
			return reply{}, err
		}
		return infoReply("⏸️ Paused the music!"), nil

	case command.Resume:
		if err := b.player.Resume(ctx, inv); err != nil {
			return reply{}, err
		}
		return infoReply("▶️ Resumed the music!"), nil

	case command.Skip:
		skipped, err := b.player.Skip(ctx, inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply("⏭️ Skipped: **" + escape(skipped.Title) + "**"), nil

	case command.Stop:
		if err := b.player.Stop(ctx, inv); err != nil {
			return reply{}, err
		}
		return infoReply("⏹️ Stopped and disconnected!"), nil

	case command.Queue:
		view, err := b.player.Queue(inv)
		if err != nil {
			return reply{}, err
		}
		return embedReply(queueEmbed(view)), nil

	case command.NowPlaying:
		np, err := b.player.NowPlaying(inv)
		if err != nil {
			return reply{}, err
		}
		return embedReply(nowPlayingEmbed(np)), nil

	case command.Join:
		if err := b.player.Join(ctx, inv); err != nil {
			return reply{}, err
		}
		return embedReply(&discordgo.MessageEmbed{Color: colorSuccess, Description: "✅ Joined <#" + inv.VoiceChannelID + ">"}), nil

	case command.Leave:
		if err := b.player.Leave(ctx, inv); err != nil {
			return reply{}, err
		}
		return infoReply("👋 Disconnected from voice channel!"), nil

	case command.Volume:
		return b.volume(ctx, inv, args)

	case command.Loop:
		mode, err := b.player.Loop(inv, query)
		if err != nil {
			return reply{}, err
		}
		return infoReply("🔁 Loop mode: **" + mode.String() + "**"), nil

	case command.Shuffle:
		n, err := b.player.Shuffle(inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply(fmt.Sprintf("🔀 Shuffled **%d** tracks!", n)), nil

	case command.Remove:
		pos, err := position(args, 0)
		if err != nil {
			return reply{}, err
		}
		removed, err := b.player.Remove(inv, pos)
		if err != nil {
			return reply{}, err
		}
		return infoReply("🗑️ Removed **" + escape(removed.Title) + "**"), nil

	case command.Move:
		from, err := position(args, 0)
		if err != nil {
			return reply{}, err
		}
		to, err := position(args, 1)
		if err != nil {
			return reply{}, err
		}
		moved, err := b.player.Move(inv, from, to)
		if err != nil {
			return reply{}, err
		}
		return infoReply(fmt.Sprintf("↕️ Moved **%s** to position **%d**", escape(moved.Title), to)), nil

	case command.Clear:
		n, err := b.player.Clear(inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply(fmt.Sprintf("🧹 Cleared **%d** tracks from the queue!", n)), nil

	case command.Autoplay:
		on, err := b.player.Autoplay(inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply("♾️ Autoplay " + onOff(on)), nil

	case command.Stay247:
		on, err := b.player.Stay247(inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply("🌙 24/7 mode " + onOff(on)), nil

	case command.Filter:
		if query != "" {
			preset, err := b.player.ApplyFilter(ctx, inv, query)
			if err != nil {
				return reply{}, err
			}
			return infoReply("🎛️ Applied filter **" + preset.Label + "**"), nil
		}
		flow, err := b.player.Filters(inv)
		if err != nil {
			return reply{}, err
		}
		return reply{send: filterMenu(flow), attach: flow.Attach}, nil

	case command.ClearFilter:
		if err := b.player.ClearFilter(ctx, inv); err != nil {
			return reply{}, err
		}
		return infoReply("🎛️ Filters cleared!"), nil

	case command.Lyrics:
		res, err := b.player.Lyrics(ctx, inv, query)
		if err != nil {
			return reply{}, err
		}
		return embedReply(lyricsEmbed(res)), nil

	default:
		return b.utility(m, name)
	}
}

func (b *Bot) volume(ctx context.Context, inv player.Invocation, args []string) (reply, error) {
	if len(args) == 0 {
		vol, err := b.player.Volume(inv)
		if err != nil {
			return reply{}, err
		}
		return infoReply(fmt.Sprintf("🔊 Current volume: **%d%%**\n\nUsage: `@%s volume <0-100>`", vol, b.botName())), nil
	}

	vol, err := strconv.Atoi(args[0])
	if err != nil {
		return reply{}, errors.Mark(errors.Wrapf(err, "volume=%s", args[0]), session.ErrInvalidVolume)
	}
	if err := b.player.SetVolume(ctx, inv, vol); err != nil {
		return reply{}, err
	}
	return infoReply(fmt.Sprintf("🔊 Volume set to **%d%%**", vol)), nil
}

// position parses the i-th argument as a 1-indexed queue position.
func position(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, errors.Wrapf(errBadNumber, "missing argument %d", i+1)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "argument %d", i+1), errBadNumber)
	}
	return n, nil
}

func onOff(on bool) string {
	if on {
		return "**enabled**"
	}
	return "**disabled**"
}

// utility answers the commands that do not touch playback.
func (b *Bot) utility(m *discordgo.MessageCreate, name command.Name) (reply, error) {
	botName := b.botName()
	botID := b.session.State.User.ID

	switch name {
	case command.Help:
		r := embedReply(helpEmbed(botName))
		r.send.Embeds[0].Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + m.Author.String(), IconURL: m.Author.AvatarURL("")}
		r.send.Components = linkButtons(b.inviteURL(botID), b.cfg.SupportURL)
		return r, nil

	case command.Ping:
		st := b.player.Stats()
		return embedReply(&discordgo.MessageEmbed{
			Color: colorInfo,
			Title: "🏓 Pong!",
			Fields: []*discordgo.MessageEmbedField{
				{Name: "API Latency", Value: fmt.Sprintf("%dms", b.session.HeartbeatLatency().Milliseconds()), Inline: true},
				{Name: "Lavalink", Value: engineState(st.EngineOnline, "✅ Connected"), Inline: true},
			},
		}), nil

	case command.Uptime:
		return embedReply(&discordgo.MessageEmbed{
			Color:       colorInfo,
			Title:       "⏰ " + botName + " Uptime",
			Description: "`" + track.FormatUptime(b.player.Stats().Uptime) + "`",
		}), nil

	case command.BotInfo:
		return embedReply(&discordgo.MessageEmbed{
			Color:     colorInfo,
			Title:     "ℹ️ " + botName + " Information",
			Thumbnail: &discordgo.MessageEmbedThumbnail{URL: b.session.State.User.AvatarURL("")},
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Bot Tag", Value: b.Tag(), Inline: true},
				{Name: "Servers", Value: strconv.Itoa(b.Guilds()), Inline: true},
				{Name: "Users", Value: strconv.Itoa(b.users()), Inline: true},
				{Name: "Uptime", Value: track.FormatUptime(b.player.Stats().Uptime), Inline: true},
				{Name: "Go", Value: runtime.Version(), Inline: true},
				{Name: "Library", Value: "discordgo " + discordgo.VERSION, Inline: true},
			},
		}), nil

	case command.Stats:
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return embedReply(statsEmbed(botName, b.player.Stats(), b.Guilds(), b.users(), float64(mem.HeapAlloc)/1024/1024)), nil

	case command.Support:
		return embedReply(&discordgo.MessageEmbed{
			Color:       colorInfo,
			Title:       "💬 Support Server",
			Description: "[Click here to join](" + b.cfg.SupportURL + ")",
		}), nil

	case command.Invite:
		return embedReply(&discordgo.MessageEmbed{
			Color:       colorInfo,
			Title:       "📨 Invite " + botName + "!",
			Description: "[Click here to invite](" + b.inviteURL(botID) + ")",
		}), nil

	case command.Vote:
		return embedReply(&discordgo.MessageEmbed{
			Color:       colorInfo,
			Title:       "🗳️ Vote for " + botName + "!",
			Description: "[Vote on Top.gg](" + b.voteURL(botID) + ")",
		}), nil

	case command.Restart:
		if b.cfg.OwnerID == "" || m.Author.ID != b.cfg.OwnerID {
			return reply{}, errOwnerOnly
		}
		zlog.Warn().Msgf("restart requested by owner: user=%s", m.Author.ID)
		if b.restart != nil {
			// Reply first; the restart closes the gateway.
			time.AfterFunc(time.Second, b.restart)
		}
		return infoReply("🔄 Restarting bot..."), nil
	}

	return reply{}, errors.Newf("unhandled command: %s", name)
}

func (b *Bot) botName() string {
	if b.session.State == nil || b.session.State.User == nil {
		return "bot"
	}
	return b.session.State.User.Username
}

func (b *Bot) users() int {
	b.session.State.RLock()
	defer b.session.State.RUnlock()

	n := 0
	for _, g := range b.session.State.Guilds {
		n += g.MemberCount
	}
	return n
}

func (b *Bot) inviteURL(botID string) string {
	return fmt.Sprintf("https://discord.com/api/oauth2/authorize?client_id=%s&permissions=%d&scope=bot", botID, b.cfg.InvitePermissions)
}

func (b *Bot) voteURL(botID string) string {
	return strings.TrimRight(b.cfg.VoteURL, "/") + "/" + botID + "/vote"
}
