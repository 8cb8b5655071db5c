// README: YAML seed file for preloading tenant geofences at boot.
package geofence

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Orgs []seedOrg `yaml:"orgs"`
}

type seedOrg struct {
	OrgID     string     `yaml:"org_id" validate:"required"`
	Geofences []Geofence `yaml:"geofences" validate:"dive"`
}

// LoadSeedFile parses and validates a geofence seed file. It shares the
// wholesale-replace path with the bulk-set admin hook.
func LoadSeedFile(path string) (map[string][]Geofence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	v := validator.New()
	out := map[string][]Geofence{}
	for _, org := range f.Orgs {
		for i := range org.Geofences {
			org.Geofences[i].OrgID = org.OrgID
		}
		if err := v.Struct(org); err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
		for i := range org.Geofences {
			if err := org.Geofences[i].Validate(); err != nil {
				return nil, fmt.Errorf("seed %s: org %s fence %s: %w", path, org.OrgID, org.Geofences[i].ID, err)
			}
		}
		out[org.OrgID] = org.Geofences
	}
	return out, nil
}
