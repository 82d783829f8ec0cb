package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kioskpos/internal/client"
	"kioskpos/internal/kiosk"
	"kioskpos/internal/notify"
	"kioskpos/internal/session"

	"github.com/spf13/cobra"
)

type app struct {
	apiURL      string
	sessionPath string
	deviceID    string

	sessions *session.FileStore
	api      *client.Client
	notifier *notify.Notifier
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		key, msg := kiosk.Describe(err)
		a.notifier.Error(key, msg)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	a.notifier = notify.New(notify.Options{
		TTL:  10 * time.Second,
		Sink: func(n notify.Notice) { fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message) },
	})

	root := &cobra.Command{
		Use:           "kiosk",
		Short:         "Self-service ordering terminal and staff screens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.sessions = session.NewFileStore(a.sessionPath)
			opts := []client.Option{client.WithTokenSource(a.sessions)}
			if a.deviceID != "" {
				opts = append(opts, client.WithDeviceID(a.deviceID))
			}
			a.api = client.New(a.apiURL, opts...)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", envOr("KIOSK_API_URL", "http://localhost:8080"), "order service base URL")
	flags.StringVar(&a.sessionPath, "session", envOr("KIOSK_SESSION_FILE", session.DefaultPath()), "session file")
	flags.StringVar(&a.deviceID, "device", os.Getenv("KIOSK_DEVICE_ID"), "device id sent as X-Device-ID")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.menuCommand(),
		a.orderCommand(),
		a.ordersCommand(),
		a.pendingCommand(),
		a.kitchenCommand(),
		a.advanceCommand(),
		a.displayCommand(),
		a.watchCommand(),
		a.productCommand(),
		a.reportCommand(),
	)
	return root
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
