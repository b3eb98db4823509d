package main

import (
	"log"

	"github.com/diticoms/service-desk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
