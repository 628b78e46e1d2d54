// Command chantier runs the Chantier Direct marketplace server and its
// maintenance commands / Serveur de la place de marché et commandes d'administration.
package main

import (
	"log"
	"os"
)

// init configures standard logger flags / Configure les flags du logger standard
func init() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.LstdFlags)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
