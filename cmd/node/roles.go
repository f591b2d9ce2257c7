package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"ReserveGate/internal/roles"
)

// RolesFile is the YAML layout of the initial role holders.
type RolesFile struct {
	Admins     []string `yaml:"admins"`
	Guardians  []string `yaml:"guardians"`
	Validators []string `yaml:"validators"`
}

// loadRoles reads and parses a roles file.
func loadRoles(path string) (map[roles.Role][]common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file:\n%w", err)
	}

	return parseRoles(data)
}

// parseRoles decodes YAML role lists into addresses.
func parseRoles(data []byte) (map[roles.Role][]common.Address, error) {
	var file RolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode roles:\n%w", err)
	}

	members := make(map[roles.Role][]common.Address, 3)

	lists := map[roles.Role][]string{
		roles.Admin:     file.Admins,
		roles.Guardian:  file.Guardians,
		roles.Validator: file.Validators,
	}

	for role, list := range lists {
		for _, s := range list {
			if !common.IsHexAddress(s) {
				return nil, fmt.Errorf("%s: invalid address %q", role, s)
			}
			members[role] = append(members[role], common.HexToAddress(s))
		}
	}

	return members, nil
}
