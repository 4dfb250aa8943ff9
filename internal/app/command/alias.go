// Package command provides the command alias table and resolver.
package command

import "strings"

// Name is a canonical command identifier.
type Name string

const (
	Play        Name = "play"
	Search      Name = "search"
	Pause       Name = "pause"
	Resume      Name = "resume"
	Skip        Name = "skip"
	Stop        Name = "stop"
	Queue       Name = "queue"
	NowPlaying  Name = "nowplaying"
	Join        Name = "join"
	Leave       Name = "leave"
	Volume      Name = "volume"
	Loop        Name = "loop"
	Shuffle     Name = "shuffle"
	Remove      Name = "remove"
	Move        Name = "move"
	Clear       Name = "clear"
	Autoplay    Name = "autoplay"
	Stay247     Name = "247"
	Filter      Name = "filter"
	ClearFilter Name = "clearfilter"
	Lyrics      Name = "lyrics"
	Help        Name = "help"
	Ping        Name = "ping"
	Uptime      Name = "uptime"
	BotInfo     Name = "botinfo"
	Stats       Name = "stats"
	Support     Name = "support"
	Invite      Name = "invite"
	Vote        Name = "vote"
	Restart     Name = "restart"
)

// Category groups commands in help output.
type Category string

const (
	CategoryMusic   Category = "Music"
	CategoryUtility Category = "Utility"
	CategoryLinks   Category = "Links"
	CategoryHidden  Category = ""
)

// Entry is one row of the alias table.
type Entry struct {
	Name     Name
	Aliases  []string
	Category Category
	Usage    string
	// Music commands require a reachable engine.
	Music bool
}

// table is declared in priority order: when two commands claim the same alias
// the earlier entry owns it.
var table = []Entry{
	{Name: Play, Aliases: []string{"play", "p"}, Category: CategoryMusic, Usage: "play <query|url>", Music: true},
	{Name: Search, Aliases: []string{"search", "find", "sr"}, Category: CategoryMusic, Usage: "search <query>", Music: true},
	{Name: Pause, Aliases: []string{"pause"}, Category: CategoryMusic, Usage: "pause", Music: true},
	{Name: Resume, Aliases: []string{"resume", "r"}, Category: CategoryMusic, Usage: "resume", Music: true},
	{Name: Skip, Aliases: []string{"skip", "s", "next"}, Category: CategoryMusic, Usage: "skip", Music: true},
	{Name: Stop, Aliases: []string{"stop", "disconnect", "dc"}, Category: CategoryMusic, Usage: "stop", Music: true},
	{Name: Queue, Aliases: []string{"queue", "q"}, Category: CategoryMusic, Usage: "queue", Music: true},
	{Name: NowPlaying, Aliases: []string{"nowplaying", "np", "current"}, Category: CategoryMusic, Usage: "nowplaying", Music: true},
	{Name: Volume, Aliases: []string{"volume", "vol", "v"}, Category: CategoryMusic, Usage: "volume [0-100]", Music: true},
	{Name: Loop, Aliases: []string{"loop", "repeat", "l"}, Category: CategoryMusic, Usage: "loop", Music: true},
	{Name: Shuffle, Aliases: []string{"shuffle", "sh"}, Category: CategoryMusic, Usage: "shuffle", Music: true},
	{Name: Remove, Aliases: []string{"remove", "rm"}, Category: CategoryMusic, Usage: "remove <position>", Music: true},
	{Name: Move, Aliases: []string{"move", "mv"}, Category: CategoryMusic, Usage: "move <from> <to>", Music: true},
	{Name: Clear, Aliases: []string{"clear", "cl"}, Category: CategoryMusic, Usage: "clear", Music: true},
	{Name: Autoplay, Aliases: []string{"autoplay", "ap"}, Category: CategoryMusic, Usage: "autoplay", Music: true},
	{Name: Stay247, Aliases: []string{"247", "24/7", "stay"}, Category: CategoryMusic, Usage: "247", Music: true},
	{Name: Filter, Aliases: []string{"filter", "filters", "fx"}, Category: CategoryMusic, Usage: "filter [name]", Music: true},
	{Name: ClearFilter, Aliases: []string{"clearfilter", "cf", "resetfilter"}, Category: CategoryMusic, Usage: "clearfilter", Music: true},
	{Name: Lyrics, Aliases: []string{"lyrics", "ly"}, Category: CategoryMusic, Usage: "lyrics [query]"},
	{Name: Join, Aliases: []string{"join", "connect"}, Category: CategoryUtility, Usage: "join", Music: true},
	{Name: Leave, Aliases: []string{"leave", "disconnect"}, Category: CategoryUtility, Usage: "leave"},
	{Name: Help, Aliases: []string{"help", "h", "commands"}, Category: CategoryUtility, Usage: "help"},
	{Name: Ping, Aliases: []string{"ping"}, Category: CategoryUtility, Usage: "ping"},
	{Name: Uptime, Aliases: []string{"uptime", "ut"}, Category: CategoryUtility, Usage: "uptime"},
	{Name: BotInfo, Aliases: []string{"botinfo", "bi", "info"}, Category: CategoryUtility, Usage: "botinfo"},
	{Name: Stats, Aliases: []string{"stats", "statistics"}, Category: CategoryUtility, Usage: "stats"},
	{Name: Support, Aliases: []string{"support"}, Category: CategoryLinks, Usage: "support"},
	{Name: Invite, Aliases: []string{"invite", "inv"}, Category: CategoryLinks, Usage: "invite"},
	{Name: Vote, Aliases: []string{"vote"}, Category: CategoryLinks, Usage: "vote"},
	{Name: Restart, Aliases: []string{"restart"}, Category: CategoryHidden, Usage: "restart"},
}

var (
	byAlias = buildIndex(table)
	byName  = buildNameIndex(table)
)

func buildIndex(entries []Entry) map[string]Name {
	index := make(map[string]Name)
	for _, e := range entries {
		for _, alias := range e.Aliases {
			if _, taken := index[alias]; taken {
				continue
			}
			index[alias] = e.Name
		}
	}
	return index
}

func buildNameIndex(entries []Entry) map[Name]Entry {
	index := make(map[Name]Entry, len(entries))
	for _, e := range entries {
		index[e.Name] = e
	}
	return index
}

// Resolve maps an input token to its canonical command.
// The token is matched case-insensitively.
func Resolve(token string) (Name, bool) {
	name, ok := byAlias[strings.ToLower(strings.TrimSpace(token))]
	return name, ok
}

// Lookup returns the table entry for a canonical command.
func Lookup(name Name) (Entry, bool) {
	e, ok := byName[name]
	return e, ok
}

// IsMusic reports whether the command requires a reachable engine.
func IsMusic(name Name) bool {
	return byName[name].Music
}

// Entries returns the alias table in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}

// Owner returns the command that owns alias, which may differ from the
// command declaring it when the alias is shared.
func Owner(alias string) Name {
	return byAlias[alias]
}
