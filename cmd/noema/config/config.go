// Package configcmder provides the config command for managing persistent
// noema configuration stored in the .noema/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent noema configuration.

Configuration is stored as config.toml in the .noema/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.backend, storage.sqlite_path, storage.postgres_url,
  events.backend, events.brokers, events.topic,
  gc.interval, gc.grace,
  log.debug, log.format

Use subcommands to get, set, or list configuration values:
  noema config set <key> <value>    Set a configuration value
  noema config get <key>            Get a configuration value
  noema config list                 List all configuration values

Examples:
  noema config set storage.backend postgres
  noema config set gc.grace 12h
  noema config get storage.sqlite_path
  noema config list`

const configShortDesc string = "Manage persistent noema configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
