package governance

import (
	"fmt"
	"os"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk YAML shape:
//
//	policies:
//	  - name: NonProdBudget
//	    condition: environment != 'production' && monthly_cost > 2000.0
//	    action: alert
type policyFile struct {
	Policies []costmodel.Policy `yaml:"policies"`
}

// LoadFile reads a policy file and compiles it into the engine. With
// failClosed unset a malformed file loads zero policies and returns nil:
// governance degrades open rather than blocking the run.
func (e *Engine) LoadFile(path string, failClosed bool) error {
	policies, err := ReadPolicies(path)
	if err != nil {
		if failClosed {
			return err
		}
		e.log().Error("failed to load policies, continuing with none", "path", path, "error", err)
		e.programs = nil
		return nil
	}

	if err := e.Compile(policies, failClosed); err != nil {
		return err
	}
	e.log().Info("loaded policies", "path", path, "count", e.PolicyCount())
	return nil
}

// ReadPolicies parses a policy YAML file.
func ReadPolicies(path string) ([]costmodel.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return pf.Policies, nil
}
