package repository

import "strings"

// MarketAliases maps contract codes to the CFTC market names reported for them.
// CFTC market names are inconsistent across years, so any alias matches.
var MarketAliases = map[string][]string{
	"ES": {"E-mini S&P 500", "S&P 500 E-mini"},
	"NQ": {"E-mini NASDAQ-100", "NASDAQ-100 E-mini"},
}

// ContractCodes returns the known contract codes in stable order.
func ContractCodes() []string { return []string{"ES", "NQ"} }

// ResolveContract maps a raw market name to a contract code (case-insensitive).
func ResolveContract(marketName string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(marketName))
	if name == "" {
		return "", false
	}
	for _, code := range ContractCodes() {
		for _, alias := range MarketAliases[code] {
			if name == strings.ToUpper(alias) {
				return code, true
			}
		}
	}
	return "", false
}

// IsKnownContract returns true if code is in the alias set.
func IsKnownContract(code string) bool {
	_, ok := MarketAliases[strings.ToUpper(code)]
	return ok
}
