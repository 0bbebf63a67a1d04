// Command yowatch connects to a yo node and prints every Yo in its vault,
// then every new one as it is recorded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"yo.mini/yo/internal/vault"
)

func main() {
	participant := flag.String("participant", "", "Only show Yos sent or received by this party")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-participant NAME] <node address:port>\n", os.Args[0])
		os.Exit(1)
	}

	wsURL, err := streamURL(flag.Arg(0), *participant)
	if err != nil {
		log.Fatalf("Invalid node address: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := watch(ctx, wsURL)
		if ctx.Err() != nil {
			return
		}
		log.Printf("Connection to %s lost: %v; retrying in 2s", wsURL, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// streamURL turns "host:port" or "http://host:port" into the Yo websocket URL.
func streamURL(address, participant string) (string, error) {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/yos"
	if participant != "" {
		u.RawQuery = url.Values{"participant": {participant}}.Encode()
	}
	return u.String(), nil
}

func watch(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var e vault.Entry
		if err := conn.ReadJSON(&e); err != nil {
			return err
		}
		log.Println(e.State)
	}
}
