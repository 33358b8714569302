// Command bazchat-chat is a terminal client for the storefront API. It
// opens either a customer chat on a business link or the owner inbox.
//
//	bazchat-chat -route '#/chat/acme-store'
//	bazchat-chat -route '#/login' -phone 5550001 -password secret
//	bazchat-chat -route '#/dashboard'
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/boddenberg/bazchat-go/internal/chatsync"
	"github.com/boddenberg/bazchat-go/internal/config"
	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"

	"go.uber.org/zap"
)

func main() {
	_ = config.LoadDotEnv(".env")

	home, _ := os.UserHomeDir()
	var (
		apiURL   = flag.String("api", envOr("BAZCHAT_API_URL", "http://localhost:8080"), "storefront API base URL")
		route    = flag.String("route", "#/", "location to open: #/chat/<slug>, #/login, #/signup, #/dashboard")
		state    = flag.String("state", filepath.Join(home, ".bazchat", "state.json"), "client state file")
		phone    = flag.String("phone", "", "owner phone (login, signup)")
		password = flag.String("password", os.Getenv("BAZCHAT_PASSWORD"), "owner password (login, signup)")
		name     = flag.String("name", "", "business name (signup) or customer name (chat)")
		logLevel = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger := observability.NewLogger(*logLevel)
	defer logger.Sync()

	store, err := chatsync.OpenFileStore(*state)
	if err != nil {
		logger.Fatal("failed to open state", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chatsync.NewClient(*apiURL, 10*time.Second, 2)
	scheduler := chatsync.NewCronScheduler(logger)
	defer scheduler.Close()

	r := chatsync.ParseRoute(*route)
	switch r.View {
	case chatsync.ViewChat:
		err = runCustomer(ctx, client, store, scheduler, r.Ref, *name, logger)
	case chatsync.ViewLogin, chatsync.ViewSignup, chatsync.ViewDashboard:
		err = runOwner(ctx, client, store, scheduler, r.View, *phone, *password, *name, logger)
	default:
		fmt.Println("BazChat: open a business chat with -route '#/chat/<slug>' or manage your inbox with -route '#/dashboard'.")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCustomer(ctx context.Context, client *chatsync.Client, store chatsync.KeyValueStore, scheduler chatsync.Scheduler, ref, name string, logger *zap.Logger) error {
	seen := map[string]chatsync.Status{}
	view := chatsync.NewCustomerView(client, chatsync.NewSessionIdentity(store), scheduler, ref, chatsync.CustomerOptions{
		CustomerName: name,
		OnChange: func(entries []chatsync.Entry) {
			for _, e := range entries {
				if seen[e.ID] == e.Status {
					continue
				}
				seen[e.ID] = e.Status
				printEntry(e)
			}
		},
	}, logger)

	if err := view.Open(ctx); err != nil {
		return err
	}
	defer view.Close()

	fmt.Printf("-- chatting with %s (type /retry or /discard to handle failed messages)\n", view.Profile().Name)
	return readLines(ctx, func(line string) {
		switch line {
		case "/retry", "/discard":
			for _, e := range view.Messages() {
				if e.Status != chatsync.StatusFailed {
					continue
				}
				if line == "/discard" {
					view.Discard(e.ID)
				} else if _, err := view.Retry(ctx, e.ID); err != nil {
					fmt.Println("!! still failing:", err)
				}
			}
		default:
			if _, err := view.Send(ctx, line); err != nil {
				fmt.Println("!! not sent, /retry to try again:", err)
			}
		}
	})
}

func runOwner(ctx context.Context, client *chatsync.Client, store chatsync.KeyValueStore, scheduler chatsync.Scheduler, v chatsync.View, phone, password, name string, logger *zap.Logger) error {
	owner, err := chatsync.NewOwnerView(client, store, scheduler, chatsync.OwnerOptions{
		OnSessions: func(sessions []domain.ChatSession) {
			for _, s := range sessions {
				if s.UnreadCount > 0 {
					fmt.Printf("** %s (%s): %d unread, last %q\n", s.ID, s.CustomerName, s.UnreadCount, s.LastText)
				}
			}
		},
	}, logger)
	if err != nil {
		return err
	}

	switch {
	case v == chatsync.ViewSignup:
		if _, err := owner.Register(ctx, &domain.RegisterRequest{Phone: phone, Password: password, FullName: name}); err != nil {
			return err
		}
	case v == chatsync.ViewLogin || owner.Profile() == nil:
		if _, err := owner.Login(ctx, phone, password); err != nil {
			return err
		}
	}
	p := owner.Profile()
	fmt.Printf("-- signed in as %s, chat link #/chat/%s\n", p.DisplayName(), p.Slug)
	fmt.Println("-- commands: /sessions, /open <id>, /close, /logout; other lines reply to the open chat")

	if err := owner.Start(ctx); err != nil {
		return err
	}
	defer owner.Stop()

	return readLines(ctx, func(line string) {
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/sessions":
			for _, s := range owner.Sessions() {
				fmt.Printf("   %s  %-16s unread=%d  %s\n", s.ID, s.CustomerName, s.UnreadCount, s.LastText)
			}
		case "/open":
			if err := owner.OpenSession(ctx, strings.TrimSpace(arg)); err != nil {
				fmt.Println("!!", err)
				return
			}
			for _, m := range owner.Messages() {
				printEntry(chatsync.Entry{Message: m, Status: chatsync.StatusSent})
			}
		case "/close":
			owner.CloseSession()
		case "/logout":
			if err := owner.Logout(); err != nil {
				fmt.Println("!!", err)
			}
			fmt.Println("-- signed out")
		default:
			if _, err := owner.Reply(ctx, line); err != nil {
				fmt.Println("!! reply failed:", err)
			}
		}
	})
}

func readLines(ctx context.Context, handle func(string)) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line = strings.TrimSpace(line); line != "" {
				handle(line)
			}
		}
	}
}

func printEntry(e chatsync.Entry) {
	who := "you"
	if e.Sender == domain.SenderOwner {
		who = "shop"
		if e.IsAI {
			who = "shop (ai)"
		}
	}
	mark := ""
	if e.Status != chatsync.StatusSent {
		mark = " [" + string(e.Status) + "]"
	}
	fmt.Printf("%s %s: %s%s\n", e.Timestamp.Local().Format("15:04"), who, e.Text, mark)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
