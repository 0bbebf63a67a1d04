// Command yokey creates (or reads) a node key file and prints the peer entry
// other nodes need to trust it.
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"yo.mini/yo/internal/config"
	"yo.mini/yo/internal/identity"
)

func main() {
	name := flag.String("name", "", "Party name for the printed peer entry")
	address := flag.String("address", "", "Base URL other nodes use to reach this one")
	notary := flag.Bool("notary", false, "Mark the peer entry as a notary")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-name NAME] [-address URL] [-notary] <key-file>\n", os.Args[0])
		os.Exit(1)
	}
	keyFile := flag.Arg(0)

	_, statErr := os.Stat(keyFile)
	id, err := identity.LoadOrCreateIdentity(keyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load key: %v\n", err)
		os.Exit(1)
	}
	if os.IsNotExist(statErr) {
		fmt.Fprintf(os.Stderr, "✓ Key generated: %s\n", keyFile)
	}
	fmt.Fprintf(os.Stderr, "Fingerprint: %s\n", id.Fingerprint())

	if *name == "" {
		fmt.Println(id.PublicKeyHex())
		return
	}

	out, err := yaml.Marshal([]config.PeerConfig{{
		Name:    *name,
		Key:     id.PublicKeyHex(),
		Address: *address,
		Notary:  *notary,
	}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode peer entry: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
}
