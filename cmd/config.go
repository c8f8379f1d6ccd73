package cmd

import (
	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/cliconfig"
	"github.com/safedrain/sd/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change client configuration",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID, _ := cliconfig.DeviceID()

		if jsonMode {
			return output.JSON(map[string]any{
				"serverUrl":     cliconfig.ServerURL(),
				"userId":        cliconfig.UserID(),
				"deviceId":      deviceID,
				"authenticated": cliconfig.IsAuthenticated(),
				"syncInterval":  cliconfig.SyncInterval().String(),
			})
		}

		output.Info("Server:        %s", cliconfig.ServerURL())
		output.Info("User:          %s", orUnset(cliconfig.UserID()))
		output.Info("Device:        %s", orUnset(deviceID))
		output.Info("Sync interval: %s", cliconfig.SyncInterval())
		if cliconfig.IsAuthenticated() {
			output.Success("Authenticated")
		} else {
			output.Warning("Not authenticated, run 'sd config set-key <key>'")
		}
		return nil
	},
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Set the server URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cliconfig.LoadConfig()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		cfg.ServerURL = args[0]
		if err := cliconfig.SaveConfig(cfg); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Server set to %s", args[0])
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := cliconfig.LoadAuth()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if creds == nil {
			creds = &cliconfig.AuthCredentials{}
		}
		creds.APIKey = args[0]
		if err := cliconfig.SaveAuth(creds); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("API key stored")
		return nil
	},
}

var configSetUserCmd = &cobra.Command{
	Use:   "set-user <user-id>",
	Short: "Set the reporting user ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := cliconfig.LoadAuth()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if creds == nil {
			creds = &cliconfig.AuthCredentials{}
		}
		creds.UserID = args[0]
		if err := cliconfig.SaveAuth(creds); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("User set to %s", args[0])
		return nil
	},
}

var configLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cliconfig.ClearAuth(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Credentials cleared")
		return nil
	},
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configSetServerCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configSetUserCmd)
	configCmd.AddCommand(configLogoutCmd)
	rootCmd.AddCommand(configCmd)
}
