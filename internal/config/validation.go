package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first and then the cross-references tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Storage != nil {
		if err := validateStorage(cfg.Storage); err != nil {
			return err
		}
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	handlers := make(map[string]bool, len(s.Handlers))
	for i, h := range s.Handlers {
		if handlers[h.Name] {
			return fmt.Errorf("storage.handlers[%d]: duplicate handler name %q", i, h.Name)
		}
		handlers[h.Name] = true
	}

	modules := make(map[string]bool, len(s.Modules))
	for i, m := range s.Modules {
		if modules[m.Name] {
			return fmt.Errorf("storage.modules[%d]: duplicate module name %q", i, m.Name)
		}
		modules[m.Name] = true
		if !handlers[m.Type] {
			return fmt.Errorf("storage.modules[%d]: unknown handler %q", i, m.Type)
		}
		domains := make(map[string]bool, len(m.Domains))
		for j, d := range m.Domains {
			if domains[d.Name] {
				return fmt.Errorf("storage.modules[%d].domains[%d]: duplicate domain name %q", i, j, d.Name)
			}
			domains[d.Name] = true
		}
	}

	consumers := make(map[string]bool, len(s.Consumers))
	for i, c := range s.Consumers {
		if consumers[c.Name] {
			return fmt.Errorf("storage.consumers[%d]: duplicate consumer name %q", i, c.Name)
		}
		consumers[c.Name] = true
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
