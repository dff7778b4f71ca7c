package extract

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// RULE-BASED EXTRACTOR
// =============================================================================

// RuleBased is a deterministic Extractor. It finds catalog names in the
// text (longest first, at most one filler word between name words, so
// "A4 printer paper" still finds "A4 paper") and takes the last number
// before each name as its quantity. Names without a quantity are ignored.
type RuleBased struct {
	// Synonyms maps normalized phrases customers use onto catalog names.
	// Targets missing from the catalog are ignored.
	Synonyms map[string]string
}

func NewRuleBased() *RuleBased {
	return &RuleBased{Synonyms: DefaultSynonyms()}
}

func DefaultSynonyms() map[string]string {
	return map[string]string{
		"printer paper":  "Standard copy paper",
		"printing paper": "Standard copy paper",
		"copy paper":     "Standard copy paper",
		"colorful paper": "Colored paper",
		"coloured paper": "Colored paper",
		"poster board":   "Poster paper",
		"washi tape":     "Decorative adhesive tape (washi tape)",
		"streamer":       "Party streamers",
		"napkin":         "Paper napkins",
		"name tag":       "Name tags with lanyards",
		"folder":         "Presentation folders",
		"invitation":     "Invitation cards",
		"table cover":    "Table covers",
	}
}

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)
	nonWord      = regexp.MustCompile(`[^a-z0-9]+`)
)

// tokens lowercases, drops punctuation and folds simple plurals.
func tokens(s string) []string {
	s = strings.ToLower(s)
	for thousandsSep.MatchString(s) {
		s = thousandsSep.ReplaceAllString(s, "$1$2")
	}
	fields := strings.Fields(nonWord.ReplaceAllString(s, " "))
	for i, f := range fields {
		fields[i] = singular(f)
	}
	return fields
}

func singular(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

type pattern struct {
	name   string
	tokens []string
}

type match struct {
	name       string
	start, end int // token span [start, end)
}

func (r *RuleBased) patterns(catalogNames []string) []pattern {
	known := make(map[string]bool, len(catalogNames))
	var out []pattern
	for _, name := range catalogNames {
		known[name] = true
		out = append(out, pattern{name: name, tokens: tokens(name)})
	}
	for phrase, target := range r.Synonyms {
		if known[target] {
			out = append(out, pattern{name: target, tokens: tokens(phrase)})
		}
	}
	// Longest patterns claim text first; ties by name keep runs stable
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].tokens) != len(out[j].tokens) {
			return len(out[i].tokens) > len(out[j].tokens)
		}
		return out[i].name < out[j].name
	})
	return out
}

// find locates pat in words starting at or after from, allowing at most one
// extra word between consecutive pattern words.
func find(words []string, pat []string, from int, claimed []bool) (match, bool) {
	if len(pat) == 0 {
		return match{}, false
	}
	for start := from; start < len(words); start++ {
		if claimed[start] || words[start] != pat[0] {
			continue
		}
		pos, ok := start, true
		for _, want := range pat[1:] {
			switch {
			case pos+1 < len(words) && !claimed[pos+1] && words[pos+1] == want:
				pos++
			case pos+2 < len(words) && !claimed[pos+1] && !claimed[pos+2] && words[pos+2] == want:
				pos += 2
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok {
			return match{start: start, end: pos + 1}, true
		}
	}
	return match{}, false
}

// ExtractItems implements Extractor.
func (r *RuleBased) ExtractItems(_ context.Context, text string, catalogNames []string) ([]inventory.RequestedItem, error) {
	words := tokens(text)
	claimed := make([]bool, len(words))

	var found []match
	for _, pat := range r.patterns(catalogNames) {
		from := 0
		for {
			m, ok := find(words, pat.tokens, from, claimed)
			if !ok {
				break
			}
			m.name = pat.name
			for i := m.start; i < m.end; i++ {
				claimed[i] = true
			}
			found = append(found, m)
			from = m.end
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	var items []inventory.RequestedItem
	index := make(map[string]int)
	prevEnd := 0
	for _, m := range found {
		qty, ok := lastNumber(words[prevEnd:m.start])
		prevEnd = m.end
		if !ok {
			continue
		}
		if i, seen := index[m.name]; seen {
			items[i].Quantity += qty
			continue
		}
		index[m.name] = len(items)
		items = append(items, inventory.RequestedItem{ItemName: m.name, Quantity: qty})
	}
	return items, nil
}

func lastNumber(words []string) (int, bool) {
	for i := len(words) - 1; i >= 0; i-- {
		if n, err := strconv.Atoi(words[i]); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// =============================================================================
// CONTEXT
// =============================================================================

var (
	eventWords = []string{
		"wedding", "conference", "festival", "concert", "exhibition", "seminar",
		"workshop", "ceremony", "gala", "meeting", "fair", "launch", "reception",
		"performance", "parade", "assembly", "celebration", "fundraiser",
		"presentation", "party", "show", "showcase", "expo", "rally", "banquet",
	}
	jobWords = []string{
		"teacher", "office manager", "event manager", "manager", "coordinator",
		"planner", "restaurant owner", "hotel manager", "artist", "designer",
		"librarian", "principal", "student", "organizer", "director",
		"administrator", "owner", "instructor", "marketing",
	}
	industryWords = map[string]string{
		"school":     "education",
		"university": "education",
		"college":    "education",
		"class":      "education",
		"hotel":      "hospitality",
		"restaurant": "food service",
		"cafe":       "food service",
		"hospital":   "healthcare",
		"clinic":     "healthcare",
		"office":     "corporate",
		"company":    "corporate",
		"nonprofit":  "nonprofit",
		"charity":    "nonprofit",
		"gallery":    "arts",
		"theater":    "arts",
		"theatre":    "arts",
		"church":     "religious",
	}
	orgPattern  = regexp.MustCompile(`(?i)\b(?:for|at)\s+(?:our|my|the)\s+([a-z][a-z -]{2,40}?)(?:[.,;!?]|\s+(?:on|in|next|this|and|with|by|to)\b|$)`)
	sizeWords   = []string{"small", "medium", "large"}
	purposeWord = regexp.MustCompile(`(?i)\b(?:for|to)\s+(decorat\w*|print\w*|packag\w*|promot\w*|advertis\w*|mail\w*|invit\w*|craft\w*|present\w*)\b`)
)

// ExtractContext implements Extractor.
func (r *RuleBased) ExtractContext(_ context.Context, text string) (map[string]string, error) {
	lower := strings.ToLower(text)
	hints := make(map[string]string)

	if w, ok := firstPhrase(lower, jobWords); ok {
		hints[KeyJobType] = w
	}
	if w, ok := firstPhrase(lower, eventWords); ok {
		hints[KeyEventType] = w
	}
	if w, ok := firstPhrase(lower, sizeWords); ok {
		hints[KeyOrderSize] = w
	}
	for _, word := range words(lower) {
		if industry, ok := industryWords[singular(word)]; ok {
			hints[KeyIndustry] = industry
			break
		}
	}
	if m := orgPattern.FindStringSubmatch(text); m != nil {
		hints[KeyOrganization] = strings.TrimSpace(m[1])
	}
	if m := purposeWord.FindStringSubmatch(text); m != nil {
		hints[KeyPurpose] = strings.ToLower(m[1])
	}
	return hints, nil
}

// firstPhrase returns the candidate that occurs earliest in text as whole words.
func firstPhrase(text string, candidates []string) (string, bool) {
	best, bestAt := "", -1
	for _, c := range candidates {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(c) + `s?\b`)
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt == -1 || loc[0] < bestAt || (loc[0] == bestAt && len(c) > len(best)) {
			best, bestAt = c, loc[0]
		}
	}
	return best, bestAt >= 0
}

func words(s string) []string {
	return strings.Fields(nonWord.ReplaceAllString(s, " "))
}
