package peeringdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonsson/ktr/internal/asnnum"
)

// Manager is a read-only handle onto a PeeringDB SQLite export.
type Manager struct {
	conn *sql.DB
}

// Open opens dbPath read-only. The DSN forces the sqlite3 driver to
// refuse writes at the driver level rather than merely by convention,
// since PeeringDB itself asks consumers of its SQL export not to
// mutate it (it's a local mirror of an API-managed dataset).
func Open(dbPath string) (*Manager, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?mode=ro&_query_only=true")
	if err != nil {
		return nil, fmt.Errorf("open peeringdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping peeringdb: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// Close closes the underlying database connection.
func (m *Manager) Close() error {
	return m.conn.Close()
}

// NetworkByASN returns the network record for asn, or nil if PeeringDB
// has no such network.
func (m *Manager) NetworkByASN(asn asnnum.Asn) (*Network, error) {
	row := m.conn.QueryRow(`
		SELECT id, name, org_id, asn, website, info_scope, info_type,
		       info_unicast, info_multicast, info_ipv6, info_never_via_route_servers
		FROM peeringdb_network WHERE asn = ?
	`, uint32(asn))

	var (
		id, orgID                                              int64
		name, website, infoScope, infoType                     string
		rowAsn                                                  uint32
		unicast, multicast, ipv6, neverViaRouteServers          bool
	)
	err := row.Scan(&id, &name, &orgID, &rowAsn, &website, &infoScope, &infoType,
		&unicast, &multicast, &ipv6, &neverViaRouteServers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query peeringdb_network: %w", err)
	}

	org, err := m.organizationByID(orgID)
	if err != nil {
		return nil, err
	}

	return &Network{
		ID:              id,
		Name:            name,
		Organization:    org,
		URL:             website,
		GeographicScope: GeographicScopeFromPeeringDB(infoScope),
		Asn:             asnnum.Asn(rowAsn),
		NetworkType:     NetworkTypeFromPeeringDB(infoType),
		Protocols: &NetworkProtocols{
			UnicastIPv4:          unicast,
			Multicast:            multicast,
			IPv6:                 ipv6,
			NeverViaRouteServers: neverViaRouteServers,
		},
	}, nil
}

func (m *Manager) organizationByID(orgID int64) (Organization, error) {
	row := m.conn.QueryRow(`SELECT id, name, website FROM peeringdb_organization WHERE id = ?`, orgID)

	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.URL); err != nil {
		return Organization{}, fmt.Errorf("query peeringdb_organization: %w", err)
	}
	return org, nil
}
