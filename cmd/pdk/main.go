// Command pdk is a CLI client for the PromptDeck prompt-sharing service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/api"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/credstore"
	"github.com/promptdeck/promptdeck/internal/errs"
	"github.com/promptdeck/promptdeck/internal/history"
	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/session"
	"github.com/promptdeck/promptdeck/internal/transport"
	"github.com/promptdeck/promptdeck/internal/vote"
)

// ---- wiring ----

type app struct {
	store   credstore.Store
	client  *transport.Client
	api     *api.Client
	session *session.Controller
	votes   *vote.Engine
	history *history.Manager
}

func newApp(apiURL string, timeout time.Duration, cfgDir string, verbose bool) *app {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	store := credstore.NewFile(cfgDir)
	client := transport.New(apiURL, store, timeout, logger)
	apiClient := api.New(client)
	ctrl := session.New(store, apiClient, logger)

	// The pipeline signals terminal renewal failure; the top-level layer
	// decides what "go to the login surface" means. Here: a message.
	client.OnSessionTerminated(func() {
		ctrl.Terminate()
		fmt.Fprintln(os.Stderr, "session expired, please run: pdk login")
	})

	return &app{
		store:   store,
		client:  client,
		api:     apiClient,
		session: ctrl,
		votes:   vote.NewEngine(apiClient, logger),
		history: history.NewManager(apiClient, printNotifier{}, logger),
	}
}

// printNotifier renders history notifications on the terminal.
type printNotifier struct{}

func (printNotifier) Success(msg string) { fmt.Println(msg) }
func (printNotifier) Error(msg string)   { fmt.Fprintln(os.Stderr, msg) }

func usage() {
	fmt.Fprintf(os.Stderr, `pdk CLI
Usage:
  pdk [-api URL] [-timeout dur] [-v] <cmd> [args]

Commands:
  version
  register   -u <username> -p <password> [-email <email>]
  login      -u <username> -p <password>        (saves credentials)
  logout
  whoami
  list
  show       -id <prompt>
  upvote     -id <prompt>
  downvote   -id <prompt>
  bookmark   -id <prompt>
  history    -id <prompt>
  revert     -id <prompt> -version <version> [-yes]
  approve    -id <prompt>                       (admin)
  reject     -id <prompt>                       (admin)
  categories
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over the shared session/mutation core.
func main() {
	cfg := config.Load()
	apiURL := flag.String("api", cfg.APIURL, "API base URL")
	timeout := flag.Duration("timeout", cfg.Timeout, "request timeout")
	cfgDir := flag.String("config-dir", cfg.ConfigDir, "credentials dir (default: XDG)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	a := newApp(*apiURL, *timeout, *cfgDir, *verbose)

	switch cmd {

	case "version":
		fmt.Printf("pdk %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		email := fs.String("email", "", "email (optional)")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		if err := a.api.Register(ctx, *u, *email, *p); err != nil {
			fail(err)
		}
		fmt.Println("registered; now run: pdk login")

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		pair, err := a.api.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		if err := a.session.Login(ctx, pair); err != nil {
			fail(err)
		}
		s := a.session.Snapshot()
		fmt.Printf("ok (%s, %s)\n", s.User.Username, s.Role)

	case "logout":
		a.session.Logout()
		fmt.Println("ok")

	case "whoami":
		cmdWhoami(ctx, a)

	case "list":
		cmdList(ctx, a)
	case "show":
		cmdShow(ctx, a, args)
	case "upvote":
		cmdVote(ctx, a, args, 1)
	case "downvote":
		cmdVote(ctx, a, args, -1)
	case "bookmark":
		cmdBookmark(ctx, a, args)
	case "history":
		cmdHistory(ctx, a, args)
	case "revert":
		cmdRevert(ctx, a, args)
	case "approve":
		cmdModerate(ctx, a, args, "approve")
	case "reject":
		cmdModerate(ctx, a, args, "reject")
	case "categories":
		cmdCategories(ctx, a)

	default:
		usage()
	}
}

func cmdWhoami(ctx context.Context, a *app) {
	if a.store.Pair().Empty() {
		fmt.Println("not logged in")
		return
	}
	if err := a.session.FetchCurrentUser(ctx); err != nil {
		fail(err)
	}
	s := a.session.Snapshot()
	if !s.Authenticated() {
		fmt.Println("not logged in")
		return
	}
	fmt.Printf("%s (%s)\n", s.User.Username, s.Role)
	if exp, ok := credstore.AccessExpiresAt(a.store.Pair()); ok {
		fmt.Printf("access token expires %s\n", exp.UTC().Format(time.RFC3339))
	}
}

// ---- helpers ----

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrSessionExpired), errors.Is(err, errs.ErrNoCredentials):
		fmt.Fprintln(os.Stderr, "session expired, please run: pdk login")
	default:
		fmt.Fprintln(os.Stderr, transport.Reason(err))
	}
	os.Exit(1)
}

func requireSession(ctx context.Context, a *app) model.Session {
	if err := a.session.FetchCurrentUser(ctx); err != nil {
		fail(err)
	}
	s := a.session.Snapshot()
	if !s.Authenticated() {
		fmt.Fprintln(os.Stderr, "not logged in; run: pdk login")
		os.Exit(1)
	}
	return s
}
