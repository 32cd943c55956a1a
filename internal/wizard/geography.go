package wizard

import "github.com/samber/lo"

// frameworkOrder fixes the order frameworks are reported in.
var frameworkOrder = []string{"GDPR", "CCPA", "PIPEDA", "LGPD", "Privacy Act", "DPDP", "APPI"}

var regionFrameworks = map[string][]string{
	"eu": {"GDPR"},
	"uk": {"GDPR"},
	"us": {"CCPA"},
	"ca": {"PIPEDA"},
	"br": {"LGPD"},
	"au": {"Privacy Act"},
	"in": {"DPDP"},
	"jp": {"APPI"},
}

// Frameworks returns the privacy regimes a policy has to address for the
// chosen geography. Worldwide distribution covers every supported regime.
// The UK is reported under GDPR.
func Frameworks(scope string, regions []string) []string {
	if scope == ScopeWorldwide {
		return append([]string(nil), frameworkOrder...)
	}
	selected := lo.FlatMap(regions, func(r string, _ int) []string {
		return regionFrameworks[r]
	})
	return lo.Filter(frameworkOrder, func(f string, _ int) bool {
		return lo.Contains(selected, f)
	})
}
