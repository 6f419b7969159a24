package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct-tag rules and the cross-section requirements of the
// selected providers.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.uses("massive") && c.Massive.APIKey == "" {
		return errors.New("massive.api_key is required when the massive provider is selected")
	}
	if c.uses("local") && c.Local.Dir == "" {
		return errors.New("local.dir is required when the local provider is selected")
	}
	if c.Snapshot.Expiries < MinExpiries || c.Snapshot.Expiries > MaxExpiries {
		return fmt.Errorf("snapshot.expiries must be between %d and %d, got %d", MinExpiries, MaxExpiries, c.Snapshot.Expiries)
	}

	return nil
}

func (c *Config) uses(name string) bool {
	return c.Provider.Primary == name || c.Provider.Secondary == name
}
