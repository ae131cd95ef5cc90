package glue

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/redshift"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"go.uber.org/zap"
)

const (
	ScopeName = "Glue"

	ConnectionUrlProperty = "JDBC_CONNECTION_URL"
)

type (
	Outputs struct {
		Databases   map[string]*construct.Resource
		Connections map[string]*construct.Resource
		Jobs        map[string]*construct.Resource
	}

	// RoleLookup finds the role the jobs run as.
	RoleLookup interface {
		Role(key string) (*construct.Resource, error)
	}
)

// Build adds the catalog databases, the JDBC connections and the jobs. The warehouse is only needed when a
// connection takes its URL from it and may be nil otherwise.
func Build(
	s *resources.Scope,
	cfg config.Glue,
	net *network.Outputs,
	roles RoleLookup,
	warehouse *redshift.Outputs,
) (*Outputs, error) {
	out := &Outputs{
		Databases:   make(map[string]*construct.Resource, len(cfg.Databases)),
		Connections: make(map[string]*construct.Resource, len(cfg.Connections)),
		Jobs:        make(map[string]*construct.Resource),
	}

	for _, key := range resources.SortedKeys(cfg.Databases) {
		db := cfg.Databases[key]
		input := map[string]any{"Name": db.Name}
		if db.Description != "" {
			input["Description"] = db.Description
		}
		r, err := s.Add(resources.GlueDatabaseType, key, construct.Properties{
			"CatalogId":     resources.AccountId(),
			"DatabaseInput": input,
		})
		if err != nil {
			return nil, err
		}
		out.Databases[key] = r
	}

	if err := buildConnections(s, cfg, net, warehouse, out); err != nil {
		return nil, err
	}
	if err := buildJobs(s, cfg, roles, out); err != nil {
		return nil, err
	}

	s.Log.Debug("Created catalog",
		zap.Int("databases", len(out.Databases)),
		zap.Int("connections", len(out.Connections)),
		zap.Int("jobs", len(out.Jobs)),
	)
	s.Done()
	return out, nil
}

// buildConnections places every connection in the first private subnet so jobs reach the warehouse and the
// on-premise databases through the NAT gateway.
func buildConnections(
	s *resources.Scope,
	cfg config.Glue,
	net *network.Outputs,
	warehouse *redshift.Outputs,
	out *Outputs,
) error {
	if len(cfg.Connections) == 0 {
		return nil
	}
	if len(net.PrivateSubnets) == 0 {
		return fmt.Errorf("%s: connections need a private subnet", s.Name)
	}
	subnet := net.PrivateSubnets[0]
	sgs, err := net.SecurityGroupIds(cfg.SecurityGroups)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	for _, key := range resources.SortedKeys(cfg.Connections) {
		conn := cfg.Connections[key]
		props := make(map[string]any, len(conn.Properties)+1)
		for _, name := range resources.SortedKeys(conn.Properties) {
			v, err := s.Input(key+"_"+name, conn.Properties[name])
			if err != nil {
				return fmt.Errorf("connection %s: %w", key, err)
			}
			props[name] = v
		}
		if conn.UrlFromRedshift {
			if warehouse == nil {
				return fmt.Errorf("connection %s: url_from_redshift needs a redshift cluster", key)
			}
			if _, ok := conn.Properties[ConnectionUrlProperty]; ok {
				return fmt.Errorf("connection %s: %s is set and url_from_redshift is true", key, ConnectionUrlProperty)
			}
			props[ConnectionUrlProperty] = warehouse.JdbcUrl()
		}

		r, err := s.Add(resources.GlueConnectionType, key, construct.Properties{
			"CatalogId": resources.AccountId(),
			"ConnectionInput": map[string]any{
				"Name":                 conn.Name,
				"ConnectionType":       "JDBC",
				"ConnectionProperties": props,
				"PhysicalConnectionRequirements": map[string]any{
					"AvailabilityZone":    subnet.AvailabilityZone,
					"SubnetId":            subnet.Resource.Ref(),
					"SecurityGroupIdList": sgs,
				},
			},
		})
		if err != nil {
			return err
		}
		out.Connections[key] = r
	}
	return nil
}
