package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd is the base "mcu-debug" command.
var RootCmd = &cobra.Command{
	Use:   "mcu-debug",
	Short: "mcu-debug bridges a DAP-speaking editor to a GDB/MI-driven embedded target",
}

// Execute adds all child commands to RootCmd and runs it. Called once by
// main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "print more messages to know what mcu-debug is doing")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mcu-debug.yaml)")
}

// initConfig binds the persistent flags into viper the way the teacher's
// initConfig does, so internal/config.Verbose() (env-var-backed) and
// this flag agree on the same "log" key.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetConfigName(".mcu-debug")
	viper.AddConfigPath("$HOME")
	viper.SetConfigType("yaml")

	viper.BindPFlag("log", RootCmd.PersistentFlags().Lookup("verbose"))

	if err := viper.ReadInConfig(); err == nil {
		color.Yellow("mcu-debug: using config file: %v", viper.ConfigFileUsed())
	}
}
