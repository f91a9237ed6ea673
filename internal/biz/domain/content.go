package domain

import "strings"

// HandleSigil prefixes handle-style keyword keys such as "@founder"
const HandleSigil = "@"

// KeywordEntry maps one trigger key to its candidate responses
type KeywordEntry struct {
	Key       string
	Responses []string
}

// IsHandle reports whether the key targets a mentioned user
func (e KeywordEntry) IsHandle() bool {
	return strings.HasPrefix(e.Key, HandleSigil)
}

// KeywordTable is an ordered keyword -> responses table.
// Entries with no responses are never stored.
type KeywordTable []KeywordEntry

// NewKeywordTable builds a table, dropping empty keys and entries without responses
func NewKeywordTable(entries ...KeywordEntry) KeywordTable {
	table := make(KeywordTable, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			continue
		}
		var responses []string
		for _, r := range e.Responses {
			if strings.TrimSpace(r) != "" {
				responses = append(responses, r)
			}
		}
		if len(responses) == 0 {
			continue
		}
		table = append(table, KeywordEntry{Key: e.Key, Responses: responses})
	}
	return table
}

// HandleEntry returns the entry whose handle key matches handle, ignoring case
func (t KeywordTable) HandleEntry(handle string) (KeywordEntry, bool) {
	for _, e := range t {
		if e.IsHandle() && strings.EqualFold(e.Key, handle) {
			return e, true
		}
	}
	return KeywordEntry{}, false
}

// MatchAll returns the non-handle entries, in table order, whose key
// occurs in text ignoring case
func (t KeywordTable) MatchAll(text string) []KeywordEntry {
	lower := strings.ToLower(text)
	var matches []KeywordEntry
	for _, e := range t {
		if e.IsHandle() {
			continue
		}
		if strings.Contains(lower, strings.ToLower(e.Key)) {
			matches = append(matches, e)
		}
	}
	return matches
}

// AllResponses flattens every response in table order
func (t KeywordTable) AllResponses() []string {
	var all []string
	for _, e := range t {
		all = append(all, e.Responses...)
	}
	return all
}

// ContentTables is an immutable set of message texts the engine reads from.
// A new value is published on every reload; published values are never modified.
type ContentTables struct {
	Keywords  KeywordTable
	General   []string
	Idle      []string
	Scheduled map[string][]string // slot name -> texts
}

// WithKeywords returns a copy with the keyword table replaced
func (c ContentTables) WithKeywords(t KeywordTable) *ContentTables {
	c.Keywords = t
	return &c
}

// WithGeneral returns a copy with the general replies replaced
func (c ContentTables) WithGeneral(list []string) *ContentTables {
	c.General = list
	return &c
}

// WithIdle returns a copy with the idle prompts replaced
func (c ContentTables) WithIdle(list []string) *ContentTables {
	c.Idle = list
	return &c
}

// WithScheduled returns a copy with the scheduled texts replaced
func (c ContentTables) WithScheduled(m map[string][]string) *ContentTables {
	c.Scheduled = m
	return &c
}

// DefaultKeywords is used when no keyword file can be loaded
func DefaultKeywords() KeywordTable {
	return NewKeywordTable(
		KeywordEntry{Key: "moon", Responses: []string{
			"🌕 To the moon, fam!",
			"MoonFish gonna fly past Valhalla 🚀🐟",
			"Moon mode engaged, strap in! 🚀🌕",
		}},
		KeywordEntry{Key: "moonfish", Responses: []string{
			"MoonFish strong 💎🙌",
			"MoonFish community never sleeps 🌊",
			"School of MoonFish > everything 🐟🚀",
		}},
		KeywordEntry{Key: "hodl", Responses: []string{
			"HODL strong 💎✊",
			"Diamond hands only here 🚀🐟",
			"HODL till Valhalla, frens ⚔️",
		}},
		KeywordEntry{Key: "diamond", Responses: []string{
			"💎💎💎 Diamond Hand Gang 💎💎💎",
			"Nothing cuts diamond hands 💪💎",
			"Shine bright, holders 💎",
		}},
		KeywordEntry{Key: "fish", Responses: []string{
			"Just keep swimming… to the moon! 🐠🚀",
			"School of Fish = strongest community 🌊",
			"One fish, two fish, MOONFISH 🚀🐟",
		}},
		KeywordEntry{Key: "valhalla", Responses: []string{
			"We sail to Valhalla with MoonFish 🛡️⚔️🐟",
			"Valhalla doors open for diamond hands ⚔️💎",
		}},
		KeywordEntry{Key: "lfg", Responses: []string{
			"LFG 🚀🌊 MoonFish unstoppable!",
			"Let's gooo MoonFish fam 💎🐟",
			"LFG, riders of the moon tide 🌊🌕",
		}},
	)
}

// DefaultIdlePrompts is used when no idle prompt file can be loaded
func DefaultIdlePrompts() []string {
	return []string{
		"What's everyone HODLing today? 💎🐟",
		"If MoonFish hits 10x, what's your first move? 🚀",
		"Drop a 🐟 if you're diamond hands till Valhalla!",
		"Who here was early to MoonFish? 🌊🙌",
		"What's stronger: tides 🌊 or diamond hands 💎?",
	}
}

// DefaultGeneralReplies is used when no general reply file can be loaded
func DefaultGeneralReplies() []string {
	return []string{
		"Love the energy in here 🚀",
		"That's the spirit, fam 🐟",
		"Keep it coming 🌊",
		"Valhalla-tier take ⚔️",
	}
}

// DefaultScheduledTexts returns an empty pool for every slot name
func DefaultScheduledTexts(slots []string) map[string][]string {
	m := make(map[string][]string, len(slots))
	for _, name := range slots {
		m[name] = []string{}
	}
	return m
}
