package agent

import "github.com/jonsson/ktr/internal/peeringdb"

// peeringdbNetworkJSON is the wire shape of a peeringdb.Network reply.
type peeringdbNetworkJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	OrganizationID  int64  `json:"organizationId"`
	Organization    string `json:"organization"`
	URL             string `json:"url"`
	GeographicScope string `json:"geographicScope"`
	Asn             uint32 `json:"asn"`
	NetworkType     string `json:"networkType"`
}

func toNetworkJSON(n *peeringdb.Network) *peeringdbNetworkJSON {
	if n == nil {
		return nil
	}
	return &peeringdbNetworkJSON{
		ID:              n.ID,
		Name:            n.Name,
		OrganizationID:  n.Organization.ID,
		Organization:    n.Organization.Name,
		URL:             n.URL,
		GeographicScope: geographicScopeName(n.GeographicScope),
		Asn:             uint32(n.Asn),
		NetworkType:     networkTypeName(n.NetworkType),
	}
}

func geographicScopeName(s peeringdb.GeographicScope) string {
	switch s {
	case peeringdb.ScopeRegional:
		return "Regional"
	case peeringdb.ScopeNorthAmerica:
		return "NorthAmerica"
	case peeringdb.ScopeAsiaPacific:
		return "AsiaPacific"
	case peeringdb.ScopeEurope:
		return "Europe"
	case peeringdb.ScopeSouthAmerica:
		return "SouthAmerica"
	case peeringdb.ScopeAfrica:
		return "Africa"
	case peeringdb.ScopeAustralia:
		return "Australia"
	case peeringdb.ScopeMiddleEast:
		return "MiddleEast"
	case peeringdb.ScopeGlobal:
		return "Global"
	default:
		return "Other"
	}
}

func networkTypeName(t peeringdb.NetworkType) string {
	switch t {
	case peeringdb.TypeNsp:
		return "NSP"
	case peeringdb.TypeContent:
		return "Content"
	case peeringdb.TypeIsp:
		return "ISP"
	case peeringdb.TypeNspOrIsp:
		return "NSPOrISP"
	case peeringdb.TypeEnterprise:
		return "Enterprise"
	case peeringdb.TypeEducational:
		return "Educational"
	case peeringdb.TypeNonProfit:
		return "NonProfit"
	case peeringdb.TypeRouteServer:
		return "RouteServer"
	case peeringdb.TypeNetworkServices:
		return "NetworkServices"
	case peeringdb.TypeRouteCollector:
		return "RouteCollector"
	case peeringdb.TypeGovernment:
		return "Government"
	default:
		return "Other"
	}
}
