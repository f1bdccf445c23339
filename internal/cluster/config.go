package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FleetConfig is the on-disk description of the data node fleet.
// JSON files of the same shape are accepted as well.
//
//	distribution: 1024
//	data_nodes:
//	  - data_node_id: 1
//	    data_node_address: 10.0.0.11:8001
type FleetConfig struct {
	DataNodes    []Node `yaml:"data_nodes"`
	Distribution int    `yaml:"distribution"`
}

// ParseFleetConfig decodes a fleet description and builds the Fleet from it.
func ParseFleetConfig(data []byte) (*Fleet, error) {
	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fleet config: %w", err)
	}
	fleet, err := NewFleet(cfg.DataNodes, cfg.Distribution)
	if err != nil {
		return nil, fmt.Errorf("fleet config: %w", err)
	}
	return fleet, nil
}

// LoadFleetConfig reads and parses the fleet file at path.
func LoadFleetConfig(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet config: %w", err)
	}
	return ParseFleetConfig(data)
}
