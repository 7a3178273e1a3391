package peeringdb

// countryScope partitions ISO 3166-1 alpha-2 country codes into seven
// regions. Codes not present here map to ScopeOther. Antarctica (AQ)
// and Bouvet Island (BV) are grouped with Australia/Oceania, matching
// the upstream convention this table is ported from.
var countryScope = buildCountryScope()

func buildCountryScope() map[string]GeographicScope {
	m := make(map[string]GeographicScope)
	add := func(scope GeographicScope, codes ...string) {
		for _, c := range codes {
			m[c] = scope
		}
	}

	add(ScopeNorthAmerica,
		"CA", "US", "MX", "BZ", "CR", "SV", "GT", "HN", "NI", "PA", "AI", "AG",
		"AW", "BS", "BB", "BM", "VG", "KY", "CU", "CW", "DM", "DO", "GD", "GP",
		"HT", "JM", "MQ", "MS", "PR", "BL", "KN", "LC", "MF", "PM", "VC", "SX",
		"TT", "TC", "VI", "GL",
	)

	add(ScopeSouthAmerica,
		"AR", "BO", "BR", "CL", "CO", "EC", "FK", "GF", "GY", "PY", "PE", "SR",
		"UY", "VE",
	)

	add(ScopeEurope,
		"AL", "AD", "AM", "AT", "AZ", "BY", "BE", "BA", "BG", "HR", "CY", "CZ",
		"DK", "EE", "FI", "FR", "GE", "DE", "GR", "HU", "IS", "IE", "IT", "XK",
		"LV", "LI", "LT", "LU", "MK", "MT", "MD", "MC", "ME", "NL", "NO", "PL",
		"PT", "RO", "RU", "SM", "RS", "SK", "SI", "ES", "SE", "CH", "TR", "UA",
		"GB", "VA", "AX", "GG", "JE", "IM", "FO", "GI", "SJ",
	)

	add(ScopeMiddleEast,
		"BH", "EG", "IR", "IQ", "IL", "JO", "KW", "LB", "OM", "PS", "QA", "SA",
		"SY", "AE", "YE",
	)

	add(ScopeAfrica,
		"DZ", "AO", "BJ", "BW", "BF", "BI", "CM", "CV", "CF", "TD", "KM", "CG",
		"CD", "CI", "DJ", "GQ", "ER", "SZ", "ET", "GA", "GM", "GH", "GN", "GW",
		"KE", "LS", "LR", "LY", "MG", "MW", "ML", "MR", "MU", "YT", "MA", "MZ",
		"NA", "NE", "NG", "RE", "RW", "ST", "SN", "SC", "SL", "SO", "ZA", "SS",
		"SD", "TZ", "TG", "TN", "UG", "EH", "ZM", "ZW", "SH",
	)

	add(ScopeAustralia,
		"AU", "NZ", "FJ", "NC", "PG", "SB", "VU", "GU", "KI", "MH", "FM", "NR",
		"MP", "PW", "WS", "AS", "CK", "PF", "NU", "PN", "TK", "TO", "TV", "WF",
		"NF", "CX", "CC", "HM", "TF", "GS",
		"AQ", "BV", // Antarctica, grouped with Australia/Oceania.
	)

	add(ScopeAsiaPacific,
		"AF", "BD", "BT", "BN", "KH", "CN", "HK", "IN", "ID", "JP", "KZ", "KP",
		"KR", "KG", "LA", "MO", "MY", "MV", "MN", "MM", "NP", "PK", "PH", "SG",
		"LK", "TW", "TJ", "TH", "TL", "TM", "UZ", "VN", "IO",
	)

	return m
}

// GeographicScopeFromCountryCode infers a GeographicScope from an ISO
// 3166-1 alpha-2 country code. Unknown codes map to ScopeOther.
func GeographicScopeFromCountryCode(code string) GeographicScope {
	if scope, ok := countryScope[code]; ok {
		return scope
	}
	return ScopeOther
}
