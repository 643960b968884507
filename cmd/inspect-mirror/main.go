package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/mirror"
)

// inspect-mirror prints the snapshots stored for a user, or every key with -all
func main() {
	email := flag.String("email", "", "user e-mail whose snapshots to print")
	all := flag.Bool("all", false, "list every key without values")
	flag.Parse()

	if *email == "" && !*all {
		fmt.Fprintln(os.Stderr, "usage: inspect-mirror -email user@example.com | -all")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Mirror.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "MIRROR_DRIVER is memory; nothing outlives the server process")
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := mirror.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open mirror: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	keys, err := store.Keys(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list keys: %v\n", err)
		os.Exit(1)
	}

	if *all {
		for _, k := range keys {
			fmt.Println(k)
		}
		fmt.Printf("\nTotal: %d keys\n", len(keys))
		return
	}

	suffix := strings.ToLower(strings.TrimSpace(*email))
	var count int
	for _, k := range keys {
		if !belongsTo(k, suffix) {
			continue
		}
		raw, err := store.Read(ctx, k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, err)
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "  ", "  "); err != nil {
			pretty.Reset()
			pretty.Write(raw)
		}
		fmt.Printf("%s (%d bytes)\n  %s\n\n", k, len(raw), pretty.String())
		count++
	}
	fmt.Printf("Total: %d snapshots for %s\n", count, suffix)
}

// belongsTo matches cart_/orders_/profile_<email> and chat_<email>_<id>
func belongsTo(key, email string) bool {
	for _, prefix := range []string{"cart_", "orders_", "profile_"} {
		if key == prefix+email {
			return true
		}
	}
	return strings.HasPrefix(key, "chat_"+email+"_")
}
