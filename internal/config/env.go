package config

import "github.com/spf13/viper"

func init() {
	viper.SetEnvPrefix("mcu_debug")
	viper.AutomaticEnv()
}

// Verbose reports whether MCU_DEBUG_LOG requests verbose tracing (spec §6
// "Environment: Only MCU_DEBUG_LOG ... are read"), bound through
// viper.AutomaticEnv the same way the teacher's cmd/root.go binds its
// environment (narrowed to this one variable, with no config-file
// fallback — spec's Non-goal on configuration-file loading).
func Verbose() bool {
	return viper.GetBool("log")
}
