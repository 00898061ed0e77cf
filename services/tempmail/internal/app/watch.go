package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate an address and follow its inbox",
	Long:  "Generates a disposable address, then polls the provider and prints every message that arrives",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		defer manager.Close()

		events, unsubscribe := manager.Subscribe(session.EventBufferSize)
		defer unsubscribe()

		username, _ := cmd.Flags().GetString("username")
		address, err := manager.GenerateAddress(ctx, username)
		if err != nil {
			return err
		}
		fmt.Printf("Address: %s (%s)\n", address.Address, address.Provider)

		open, _ := cmd.Flags().GetBool("open")
		w := newInboxWriter(os.Stdout, manager, open)

		manager.Start(ctx)

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sigChan:
				fmt.Println("\nShutting down gracefully...")
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				w.handle(ctx, ev)
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("username", "", "Requested local part (random when empty)")
	watchCmd.Flags().Bool("open", false, "Fetch and print the body of every new message")
	rootCmd.AddCommand(watchCmd)
}

// inboxWriter prints messages the first time they show up in the list
type inboxWriter struct {
	out     io.Writer
	manager *session.Manager
	open    bool
	seen    map[string]bool
}

func newInboxWriter(out io.Writer, manager *session.Manager, open bool) *inboxWriter {
	return &inboxWriter{out: out, manager: manager, open: open, seen: make(map[string]bool)}
}

func (w *inboxWriter) handle(ctx context.Context, ev session.Event) {
	switch ev.Type {
	case session.EventMessagesUpdated:
		messages := w.manager.Messages()
		// Oldest first so the output reads chronologically
		for i := len(messages) - 1; i >= 0; i-- {
			msg := messages[i]
			if w.seen[msg.ID] {
				continue
			}
			w.seen[msg.ID] = true
			w.printSummary(msg)
			if w.open {
				w.printBody(ctx, msg.ID)
			}
		}
	case session.EventError:
		log.WithField("kind", ev.ErrorKind).Warn(ev.Error)
	}
}

func (w *inboxWriter) printSummary(msg models.Message) {
	from := msg.From.Address
	if msg.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", msg.From.Name, msg.From.Address)
	}
	fmt.Fprintf(w.out, "[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04:05"), from, msg.Subject)
	if msg.Intro != "" {
		fmt.Fprintf(w.out, "    %s\n", msg.Intro)
	}
}

func (w *inboxWriter) printBody(ctx context.Context, id string) {
	msg, err := w.manager.FetchMessageContent(ctx, id)
	if err != nil {
		log.WithError(err).WithField("message_id", id).Warn("Failed to fetch message")
		return
	}
	fmt.Fprintln(w.out, msg.Text)
	for _, a := range msg.Attachments {
		fmt.Fprintf(w.out, "    attachment: %s (%d bytes) %s\n", a.Filename, a.Size, a.DownloadURL)
	}
}
