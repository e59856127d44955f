package main

import (
	"log"

	"github.com/mcu-debug/mcu-debug-core/cmd"
)

func main() {
	log.SetFlags(log.Lshortfile)
	log.SetPrefix("mcu-debug: \x1b[101mfatal error:\x1b[0m ")
	cmd.Execute()
}
