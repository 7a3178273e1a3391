package peeringdb

import "testing"

func TestGeographicScopeFromCountryCode(t *testing.T) {
	cases := []struct {
		code string
		want GeographicScope
	}{
		{"US", ScopeNorthAmerica},
		{"BR", ScopeSouthAmerica},
		{"DE", ScopeEurope},
		{"SA", ScopeMiddleEast},
		{"ZA", ScopeAfrica},
		{"AU", ScopeAustralia},
		{"AQ", ScopeAustralia},
		{"BV", ScopeAustralia},
		{"CN", ScopeAsiaPacific},
		{"ZZ", ScopeOther},
		{"", ScopeOther},
	}

	for _, c := range cases {
		if got := GeographicScopeFromCountryCode(c.code); got != c.want {
			t.Errorf("GeographicScopeFromCountryCode(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestGeographicScopeFromPeeringDB(t *testing.T) {
	cases := []struct {
		s    string
		want GeographicScope
	}{
		{"Regional", ScopeRegional},
		{"North America", ScopeNorthAmerica},
		{"Global", ScopeGlobal},
		{"nonsense", ScopeOther},
		{"", ScopeOther},
	}

	for _, c := range cases {
		if got := GeographicScopeFromPeeringDB(c.s); got != c.want {
			t.Errorf("GeographicScopeFromPeeringDB(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestNetworkTypeFromPeeringDB(t *testing.T) {
	cases := []struct {
		s    string
		want NetworkType
	}{
		{"NSP", TypeNsp},
		{"Cable/DSL/ISP", TypeIsp},
		{"Government", TypeGovernment},
		{"unknown-type", TypeOther},
	}

	for _, c := range cases {
		if got := NetworkTypeFromPeeringDB(c.s); got != c.want {
			t.Errorf("NetworkTypeFromPeeringDB(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}
