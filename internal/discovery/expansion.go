package discovery

import (
	"regexp"
	"strings"
)

// FanOutThreshold is the match count above which a candidate is expanded
// even if it is not a known symbol itself.
const FanOutThreshold = 10

// DefaultMaxSymbolLength is used when the store cannot report the longest symbol.
const DefaultMaxSymbolLength = 21

// FirstSearchCharacters seeds a fresh crawl.
const FirstSearchCharacters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ^"

// GeneralSearchCharacters is [0-9A-Z.=+] ordered by how often each
// character occurs in real ticker symbols.
const GeneralSearchCharacters = "012.AP5CSNB63V47T8XEM9FLIDGURQHOKZWYJ=+"

// OptionSearchCharacters continue an option contract code.
const OptionSearchCharacters = "0123456789"

// ExchangeSuffixes mark a complete symbol listed on a non-US venue.
var ExchangeSuffixes = []string{
	".BA", ".AX", ".VI", ".BR", ".SA", ".CN", ".NE", ".TO", ".V", ".SN", ".SS", ".SZ", ".PR", ".CO",
	".CA", ".TL", ".HE", ".NX", ".PA", ".BE", ".BM", ".DU", ".F", ".HM", ".HA", ".MU", ".SG", ".DE",
	"=X", ".AT", ".HK", ".BD", ".IC", ".BO", ".NS", ".JK", ".IR", ".TA", ".TI", ".MI", ".T", ".RG",
	".VS", ".KL", ".MX", ".AS", ".NZ", ".OL", ".LS", ".QA", ".ME", ".SI", ".JO", ".KS", ".KQ", ".MC",
	".SAU", ".ST", ".SW", ".TWO", ".TW", ".BK", ".IS", ".L", ".IL", ".CBT", ".CME", ".NYB", ".CMX",
	".NYM", ".CR",
}

// optionCode matches a strike followed by put/call, e.g. SPXW2024P.
var optionCode = regexp.MustCompile(`\d{4}[PC]$`)

// Membership reports whether a symbol is known to exist.
type Membership interface {
	Contains(symbol string) bool
}

// HasExchangeSuffix reports whether candidate already ends in an exchange marker.
func HasExchangeSuffix(candidate string) bool {
	for _, sfx := range ExchangeSuffixes {
		if strings.HasSuffix(candidate, sfx) {
			return true
		}
	}
	return false
}

// Expand returns the children of candidate worth searching next.
//
// matchCount is the number of search results (-1 when the lookup was skipped).
// A candidate is expanded only if it is a known symbol or returned more than
// FanOutThreshold matches, it is at most maxLen characters long, and it is not
// already terminated by an exchange suffix.
func Expand(candidate string, matchCount int, known Membership, maxLen int) []string {
	if !(known.Contains(candidate) || matchCount > FanOutThreshold) {
		return nil
	}
	if len(candidate) >= maxLen+1 || HasExchangeSuffix(candidate) {
		return nil
	}

	switch {
	case strings.HasSuffix(candidate, "."):
		// only an exchange code can follow
		stem := strings.TrimSuffix(candidate, ".")
		children := make([]string, 0, len(ExchangeSuffixes))
		for _, sfx := range ExchangeSuffixes {
			children = append(children, stem+sfx)
		}
		return children
	case optionCode.MatchString(candidate):
		return appendEach(candidate, OptionSearchCharacters)
	default:
		return appendEach(candidate, GeneralSearchCharacters)
	}
}

func appendEach(prefix, alphabet string) []string {
	children := make([]string, 0, len(alphabet))
	for _, c := range alphabet {
		children = append(children, prefix+string(c))
	}
	return children
}
