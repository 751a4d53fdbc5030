package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aidoapp/aido-go/internal/api"
	"github.com/aidoapp/aido-go/internal/app"
	"github.com/aidoapp/aido-go/internal/config"
	"github.com/aidoapp/aido-go/internal/logger"
	"github.com/aidoapp/aido-go/internal/secrets"
)

const usage = `usage: aidoctl [flags] <command>

commands:
  login <email>    authenticate and store the token pair (password read from AIDO_PASSWORD)
  logout           clear stored tokens
  whoami           show the authenticated user
  todos            list todos
  friends          list friends
  notifications    list notifications
  cheer <user-id>  send a cheer to a friend
  nudge <user-id>  send a nudge to a friend
`

func main() {
	configPath := flag.String("config", "", "Path to JSON config file")
	useKeychain := flag.Bool("use-keychain", false, "Store tokens in the macOS keychain")
	useFS := flag.Bool("use-fs-creds", false, "Store tokens in a secrets file")
	fsPath := flag.String("fs-creds-path", "", "Path to the secrets file (defaults to the XDG location)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aidoctl: %v\n", err)
		os.Exit(1)
	}
	if *useKeychain {
		cfg.Secrets.Backend = "keychain"
	} else if *useFS {
		cfg.Secrets.Backend = "fs"
		if *fsPath != "" {
			cfg.Secrets.Path = *fsPath
		}
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	svc, store, err := app.NewService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build client")
	}
	reportTokenStatus(store, log)

	ctx := context.Background()
	if err := run(ctx, svc, log, flag.Args()); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func run(ctx context.Context, svc *api.Service, log zerolog.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch args[0] {
	case "login":
		if len(args) < 2 {
			return fmt.Errorf("login requires an email argument")
		}
		password := os.Getenv("AIDO_PASSWORD")
		if password == "" {
			return fmt.Errorf("set AIDO_PASSWORD to log in")
		}
		if err := svc.Login(ctx, args[1], password); err != nil {
			return err
		}
		log.Info().Str("email", args[1]).Msg("Logged in")
		return nil
	case "logout":
		if err := svc.Logout(ctx); err != nil {
			return err
		}
		log.Info().Msg("Logged out")
		return nil
	case "whoami":
		user, err := svc.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(user)
	case "todos":
		todos, err := svc.Todos(ctx)
		if err != nil {
			return err
		}
		return printJSON(todos)
	case "friends":
		friends, err := svc.Friends(ctx)
		if err != nil {
			return err
		}
		return printJSON(friends)
	case "notifications":
		notifications, err := svc.Notifications(ctx)
		if err != nil {
			return err
		}
		return printJSON(notifications)
	case "cheer":
		if len(args) < 2 {
			return fmt.Errorf("cheer requires a user-id argument")
		}
		return svc.Cheer(ctx, args[1])
	case "nudge":
		if len(args) < 2 {
			return fmt.Errorf("nudge requires a user-id argument")
		}
		return svc.Nudge(ctx, args[1])
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportTokenStatus logs whether credentials are present at startup, so a
// missing login is obvious before the first 401.
func reportTokenStatus(store secrets.Store, log zerolog.Logger) {
	ctx := context.Background()
	access, err := store.Get(ctx, secrets.KeyAccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read stored credentials")
		return
	}
	refresh, _ := store.Get(ctx, secrets.KeyRefreshToken)

	switch {
	case access == "" && refresh == "":
		log.Debug().Msg("No stored credentials, run `aidoctl login`")
	case refresh == "":
		log.Warn().Msg("Access token present but no refresh token, session will not survive expiry")
	default:
		log.Debug().Int("token_length", len(access)).Msg("Stored credentials loaded")
	}
}
