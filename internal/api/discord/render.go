package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/osa030/drum/internal/app/command"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/playback"
	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/app/selection"
	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/lyrics"
)

// Embed colors
const (
	colorInfo    = 0x0099ff
	colorSuccess = 0x00ff00
	colorError   = 0xff0000
)

// Component identifiers of the now-playing controls.
const (
	buttonPause = "pause"
	buttonSkip  = "skip"
	buttonStop  = "stop"
)

const pickPrefix = "pick"

func infoEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: colorInfo, Description: text}
}

func errorEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: colorError, Description: "❌ " + text}
}

// trackLink renders a track title, linked when it has a URI.
func trackLink(t track.Track) string {
	title := escape(t.Title)
	if t.URI == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("[%s](%s)", title, t.URI)
}

var markdown = strings.NewReplacer("[", "\\[", "]", "\\]", "*", "\\*", "_", "\\_", "`", "\\`")

func escape(s string) string {
	return markdown.Replace(s)
}

func requester(t track.Track) string {
	switch t.RequesterID {
	case "":
		return "Unknown"
	case playback.AutoplayRequester:
		return "Autoplay"
	default:
		return "<@" + t.RequesterID + ">"
	}
}

func nowPlayingEmbed(np presenter.NowPlaying) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:       colorSuccess,
		Title:       "🎵 Now Playing",
		Description: trackLink(np.Track),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: track.FormatLength(np.Track), Inline: true},
			{Name: "Requested by", Value: requester(np.Track), Inline: true},
			{Name: "Volume", Value: strconv.Itoa(np.Volume) + "%", Inline: true},
		},
	}
	if np.Track.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: np.Track.ArtworkURL}
	}

	var footer []string
	if np.Loop != "" && np.Loop != "off" {
		footer = append(footer, "Loop: "+np.Loop)
	}
	if np.Autoplay {
		footer = append(footer, "Autoplay on")
	}
	if np.Filter != "" {
		footer = append(footer, "Filter: "+np.Filter)
	}
	if np.QueueLength > 0 {
		footer = append(footer, fmt.Sprintf("%d in queue", np.QueueLength))
	}
	if len(footer) > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: strings.Join(footer, " • ")}
	}
	return embed
}

// controls renders the pause, skip and stop buttons.
func controls(paused, disabled bool) []discordgo.MessageComponent {
	pause := discordgo.Button{
		CustomID: buttonPause,
		Emoji:    &discordgo.ComponentEmoji{Name: "⏸️"},
		Style:    discordgo.PrimaryButton,
		Disabled: disabled,
	}
	if paused {
		pause.Emoji = &discordgo.ComponentEmoji{Name: "▶️"}
		pause.Style = discordgo.SuccessButton
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			pause,
			discordgo.Button{CustomID: buttonSkip, Emoji: &discordgo.ComponentEmoji{Name: "⏭️"}, Style: discordgo.PrimaryButton, Disabled: disabled},
			discordgo.Button{CustomID: buttonStop, Emoji: &discordgo.ComponentEmoji{Name: "⏹️"}, Style: discordgo.DangerButton, Disabled: disabled},
		}},
	}
}

func addedEmbed(res player.PlayResult) *discordgo.MessageEmbed {
	if res.PlaylistName != "" || len(res.Added) > 1 {
		name := res.PlaylistName
		if name == "" {
			name = "Playlist"
		}
		embed := &discordgo.MessageEmbed{
			Color:       colorSuccess,
			Title:       "📃 Playlist Added",
			Description: "**" + escape(name) + "**",
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Tracks", Value: strconv.Itoa(len(res.Added)), Inline: true},
			},
		}
		return withSkipped(embed, res.Skipped)
	}

	t := res.Added[0]
	embed := &discordgo.MessageEmbed{
		Color:       colorSuccess,
		Title:       "✅ Added to Queue",
		Description: trackLink(t),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: track.FormatLength(t), Inline: true},
		},
	}
	if res.Started {
		embed.Title = "▶️ Playing"
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Position", Value: strconv.Itoa(res.Position), Inline: true})
	}
	if t.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL}
	}
	return withSkipped(embed, res.Skipped)
}

// withSkipped notes tracks that were dropped because they failed to start.
func withSkipped(embed *discordgo.MessageEmbed, skipped int) *discordgo.MessageEmbed {
	if skipped > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "⚠️ Skipped", Value: strconv.Itoa(skipped) + " unplayable", Inline: true})
	}
	return embed
}

func queueEmbed(v player.QueueView) *discordgo.MessageEmbed {
	var b strings.Builder
	b.WriteString("**Now Playing:**\n")
	b.WriteString(trackLink(v.Current))
	b.WriteString("\n\n**Up Next:**\n")
	if len(v.Upcoming) == 0 {
		b.WriteString("Nothing in queue")
	}
	for i, t := range v.Upcoming {
		fmt.Fprintf(&b, "%d. %s `%s`\n", i+1, trackLink(t), track.FormatLength(t))
	}

	embed := &discordgo.MessageEmbed{
		Color:       colorInfo,
		Title:       "🎵 Music Queue",
		Description: strings.TrimRight(b.String(), "\n"),
	}
	footer := fmt.Sprintf("%d tracks • Loop: %s", v.Total, v.Loop)
	if v.Remaining > 0 {
		footer = fmt.Sprintf("And %d more... • ", v.Remaining) + footer
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}

// pickID builds the custom id of a selection menu.
func pickID(kind, flowID string) string {
	return pickPrefix + ":" + kind + ":" + flowID
}

// parsePickID splits a selection menu custom id.
func parsePickID(customID string) (kind, flowID string, ok bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != pickPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// searchMenu renders the results of a search flow as a select menu.
func searchMenu(flow *selection.Flow[track.Track]) *discordgo.MessageSend {
	options := flow.Options()
	menu := make([]discordgo.SelectMenuOption, 0, len(options))
	var b strings.Builder
	for i, t := range options {
		fmt.Fprintf(&b, "%d. %s `%s`\n", i+1, trackLink(t), track.FormatLength(t))
		menu = append(menu, discordgo.SelectMenuOption{
			Label:       truncate(fmt.Sprintf("%d. %s", i+1, t.Title), 100),
			Value:       strconv.Itoa(i),
			Description: truncate(t.Author+" • "+track.FormatLength(t), 100),
		})
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Color:       colorInfo,
			Title:       "🔎 Search Results",
			Description: strings.TrimRight(b.String(), "\n"),
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Pick a track within %s", flowTTL(flow))},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    pickID(player.KindSearch, flow.ID()),
					Placeholder: "Choose a track",
					Options:     menu,
				},
			}},
		},
	}
}

// filterMenu renders the filter catalog as a select menu.
func filterMenu(flow *selection.Flow[filter.Preset]) *discordgo.MessageSend {
	options := flow.Options()
	menu := make([]discordgo.SelectMenuOption, 0, len(options))
	for i, p := range options {
		menu = append(menu, discordgo.SelectMenuOption{
			Label:       p.Label,
			Value:       strconv.Itoa(i),
			Description: truncate(p.Description, 100),
		})
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Color:       colorInfo,
			Title:       "🎛️ Audio Filters",
			Description: "Choose a filter to apply to the player.",
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Pick a filter within %s", flowTTL(flow))},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    pickID(player.KindFilter, flow.ID()),
					Placeholder: "Choose a filter",
					Options:     menu,
				},
			}},
		},
	}
}

type expiring interface {
	Expiry() time.Time
}

func flowTTL(f expiring) string {
	return track.FormatUptime(time.Until(f.Expiry()).Round(time.Second))
}

func lyricsEmbed(res lyrics.Result) *discordgo.MessageEmbed {
	title := "📝 " + res.TrackName
	if res.ArtistName != "" {
		title += " - " + res.ArtistName
	}
	embed := &discordgo.MessageEmbed{
		Color:       colorInfo,
		Title:       truncate(title, 256),
		Description: res.PlainLyrics,
	}
	if res.AlbumName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: res.AlbumName}
	}
	return embed
}

// helpEmbed lists every visible command with its aliases, grouped by category.
func helpEmbed(botName string) *discordgo.MessageEmbed {
	groups := make(map[command.Category][]string)
	var order []command.Category
	for _, e := range command.Entries() {
		if e.Category == command.CategoryHidden {
			continue
		}
		if _, seen := groups[e.Category]; !seen {
			order = append(order, e.Category)
		}
		entry := "`" + string(e.Name) + "`"
		if len(e.Aliases) > 1 {
			var shortcuts []string
			for _, a := range e.Aliases {
				if a != string(e.Name) && command.Owner(a) == e.Name {
					shortcuts = append(shortcuts, a)
				}
			}
			if len(shortcuts) > 0 {
				entry = "`" + string(e.Name) + " (" + strings.Join(shortcuts, ", ") + ")`"
			}
		}
		groups[e.Category] = append(groups[e.Category], entry)
	}

	icons := map[command.Category]string{
		command.CategoryMusic:   "🎵 ",
		command.CategoryUtility: "🔧 ",
		command.CategoryLinks:   "🔗 ",
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(order)+1)
	for _, c := range order {
		fields = append(fields, &discordgo.MessageEmbedField{Name: icons[c] + string(c), Value: strings.Join(groups[c], " ")})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "📝 Note", Value: "Commands in parentheses are aliases you can use as shortcuts!"})

	return &discordgo.MessageEmbed{
		Color:       colorInfo,
		Title:       "🎵 " + botName + " Commands",
		Description: fmt.Sprintf("Mention me with a command! Example: `@%s play song name`", botName),
		Fields:      fields,
	}
}

func statsEmbed(botName string, st player.Stats, servers, users int, heapMB float64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color: colorInfo,
		Title: "📊 " + botName + " Statistics",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Servers", Value: strconv.Itoa(servers), Inline: true},
			{Name: "Users", Value: strconv.Itoa(users), Inline: true},
			{Name: "Active Players", Value: strconv.Itoa(st.ActivePlayers), Inline: true},
			{Name: "Memory Usage", Value: fmt.Sprintf("%.2f MB", heapMB), Inline: true},
			{Name: "Uptime", Value: track.FormatUptime(st.Uptime), Inline: true},
			{Name: "Lavalink", Value: engineState(st.EngineOnline, "✅ Online"), Inline: true},
			{Name: "Tracks Played", Value: strconv.FormatUint(st.TracksStarted, 10), Inline: true},
		},
	}
}

func engineState(online bool, up string) string {
	if online {
		return up
	}
	return "❌ Offline"
}

func linkButtons(inviteURL, supportURL string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Invite Me", Style: discordgo.LinkButton, URL: inviteURL},
			discordgo.Button{Label: "Support Server", Style: discordgo.LinkButton, URL: supportURL},
		}},
	}
}
