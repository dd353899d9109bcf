package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cli "github.com/mindhaven/mpcnet/cmd"
)

func main() {
	command := &cobra.Command{
		Use: "mpcnet",
	}
	addCliCmd(command)
	addDaemonCmd(command)

	err := command.Execute()
	if err != nil {
		panic(err)
	}
}

// addCliCmd starts a party with the interactive prompt
func addCliCmd(command *cobra.Command) {
	var config string
	var key string

	startCmd := &cobra.Command{
		Use:   "cli",
		Short: "Start an MPC party with interactive CLI",
		Long:  "Start an MPC party with interactive CLI, connect the session and perform operations",
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
			cli.StartCMD(config, key, false)
		},
	}

	startCmd.Flags().StringVarP(&config, "config", "c", "session.yaml", "Session configuration file")
	startCmd.Flags().StringVarP(&key, "key", "k", "", "Hex-encoded secp256k1 private key")

	command.AddCommand(startCmd)
}

// addDaemonCmd starts a party without the prompt
func addDaemonCmd(command *cobra.Command) {
	var config string
	var key string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start an MPC party as daemon",
		Long:  "Start an MPC party as daemon, connecting the session and serving preprocessing",
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cli.StartCMD(config, key, true)
		},
	}

	daemonCmd.Flags().StringVarP(&config, "config", "c", "session.yaml", "Session configuration file")
	daemonCmd.Flags().StringVarP(&key, "key", "k", "", "Hex-encoded secp256k1 private key")

	command.AddCommand(daemonCmd)
}
