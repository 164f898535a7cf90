package cmd

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Driver string `mapstructure:"driver" validate:"required,oneof=mysql postgres pgx sqlserver mssql oracle"`
	DSN    string `mapstructure:"dsn" validate:"required"`
	Schema string `mapstructure:"schema"`
	Active bool   `mapstructure:"active"`
}

var validate = validator.New()

// loadDBConfigs reads and validates every configured database.
func loadDBConfigs() ([]DBConfig, error) {
	var configs []DBConfig
	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no databases configured (add a databases: list to db-transfer.yaml)")
	}

	names := make(map[string]bool, len(configs))
	for i := range configs {
		if err := validate.Struct(&configs[i]); err != nil {
			return nil, fmt.Errorf("databases[%d] (%s): %w", i, configs[i].Name, err)
		}
		if names[configs[i].Name] {
			return nil, fmt.Errorf("database %q is configured twice", configs[i].Name)
		}
		names[configs[i].Name] = true
	}
	return configs, nil
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	configs, err := loadDBConfigs()
	if err != nil {
		return nil, err
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}

	return activeConfig, nil
}

// GetDBConfig returns the database configured under name.
func GetDBConfig(name string) (*DBConfig, error) {
	configs, err := loadDBConfigs()
	if err != nil {
		return nil, err
	}
	for i := range configs {
		if configs[i].Name == name {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("database %q not found in config", name)
}
