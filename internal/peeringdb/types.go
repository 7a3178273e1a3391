// Package peeringdb provides a read-only lookup of PeeringDB network
// and organization records from a local SQLite export, keyed by ASN.
package peeringdb

import "github.com/jonsson/ktr/internal/asnnum"

// Organization is a PeeringDB organization record.
type Organization struct {
	ID   int64
	Name string
	URL  string
}

// NetworkProtocols describes which address families a network
// announces, per its PeeringDB record.
type NetworkProtocols struct {
	UnicastIPv4          bool
	Multicast            bool
	IPv6                 bool
	NeverViaRouteServers bool
}

// Network is a PeeringDB network record with its organization resolved.
type Network struct {
	ID              int64
	Name            string
	Organization    Organization
	URL             string
	GeographicScope GeographicScope
	Asn             asnnum.Asn
	NetworkType     NetworkType
	Protocols       *NetworkProtocols
}

// GeographicScope is PeeringDB's declared or inferred regional scope
// for a network.
type GeographicScope int

const (
	ScopeOther GeographicScope = iota
	ScopeRegional
	ScopeNorthAmerica
	ScopeAsiaPacific
	ScopeEurope
	ScopeSouthAmerica
	ScopeAfrica
	ScopeAustralia
	ScopeMiddleEast
	ScopeGlobal
)

// GeographicScopeFromPeeringDB maps the string PeeringDB stores in
// info_scope to a GeographicScope, defaulting unknown strings to Other.
func GeographicScopeFromPeeringDB(s string) GeographicScope {
	switch s {
	case "Regional":
		return ScopeRegional
	case "North America":
		return ScopeNorthAmerica
	case "Asia Pacific":
		return ScopeAsiaPacific
	case "Europe":
		return ScopeEurope
	case "South America":
		return ScopeSouthAmerica
	case "Africa":
		return ScopeAfrica
	case "Australia":
		return ScopeAustralia
	case "Middle East":
		return ScopeMiddleEast
	case "Global":
		return ScopeGlobal
	default:
		return ScopeOther
	}
}

// NetworkType is PeeringDB's declared business/operational type for a
// network.
type NetworkType int

const (
	TypeOther NetworkType = iota
	TypeNsp
	TypeContent
	TypeIsp
	TypeNspOrIsp
	TypeEnterprise
	TypeEducational
	TypeNonProfit
	TypeRouteServer
	TypeNetworkServices
	TypeRouteCollector
	TypeGovernment
)

// NetworkTypeFromPeeringDB maps the string PeeringDB stores in
// info_type to a NetworkType, defaulting unknown strings to Other.
func NetworkTypeFromPeeringDB(s string) NetworkType {
	switch s {
	case "NSP":
		return TypeNsp
	case "Content":
		return TypeContent
	case "Cable/DSL/ISP":
		return TypeIsp
	case "Enterprise":
		return TypeEnterprise
	case "Educational/Research":
		return TypeEducational
	case "Non-Profit":
		return TypeNonProfit
	case "Route Server":
		return TypeRouteServer
	case "Network Services":
		return TypeNetworkServices
	case "Route Collector":
		return TypeRouteCollector
	case "Government":
		return TypeGovernment
	default:
		return TypeOther
	}
}
