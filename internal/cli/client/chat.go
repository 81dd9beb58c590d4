package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/chatclient"
	"github.com/spf13/cobra"
)

// ChatCmd sends a message, or runs an interactive conversation.
func ChatCmd() *cobra.Command {
	var (
		interactive  bool
		showMemories bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the sign industry assistant",
		Long: `Ask the sign industry assistant and stream the answer.

With an access token the answer draws on your saved memories and your
company's approved knowledge; without one it is generic. Press Ctrl-C to
stop an answer; in interactive mode Ctrl-C at the prompt or "/exit" quits
and "/reset" starts a new conversation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ResolveSettings(cmd)
			if err != nil {
				return err
			}
			session := chatclient.NewSession(chatclient.New(settings.Endpoint(), settings.Token, &http.Client{}))
			c := &chatter{
				session:      session,
				out:          cmd.OutOrStdout(),
				errOut:       cmd.ErrOrStderr(),
				showMemories: showMemories,
			}

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			if interactive {
				return c.repl(cmd.Context(), cmd.InOrStdin(), interrupts)
			}

			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return errors.New("message is required (or use --interactive)")
			}
			return c.turn(cmd.Context(), message, interrupts)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start an interactive conversation")
	cmd.Flags().BoolVarP(&showMemories, "show-memories", "m", false, "List the memories behind each answer")

	return cmd
}

type chatter struct {
	session      *chatclient.Session
	out          io.Writer
	errOut       io.Writer
	showMemories bool
}

// turn streams one answer. An interrupt cancels it silently; the partial
// answer stays on screen.
func (c *chatter) turn(ctx context.Context, message string, interrupts <-chan os.Signal) error {
	r := &renderer{out: c.out}
	var raw strings.Builder
	turn := c.session.Send(ctx, message, chatclient.Callbacks{
		OnDelta: func(delta string) {
			raw.WriteString(delta)
			r.update(raw.String())
		},
	})

	select {
	case <-turn.Done():
	case <-interrupts:
		turn.Cancel()
	}

	err := turn.Wait()
	switch {
	case err == nil:
		r.finish(turn.Message.RawText())
		fmt.Fprintln(c.out)
		writeIndicator(c.out, turn.Message.Indicator(), c.showMemories)
		return nil
	case chatclient.IsCancelled(err):
		fmt.Fprintln(c.out, "\n(stopped)")
		return nil
	default:
		if r.printed != "" {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintf(c.errOut, "Error: %s\n", err)
		return err
	}
}

func (c *chatter) repl(ctx context.Context, in io.Reader, interrupts <-chan os.Signal) error {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	fmt.Fprintln(c.out, `signmaker chat. Type "/exit" to quit, "/reset" to start over.`)
	for {
		fmt.Fprint(c.out, "> ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			line = strings.TrimSpace(l)
		case <-interrupts:
			fmt.Fprintln(c.out)
			return nil
		case <-ctx.Done():
			return nil
		}

		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			c.session.Reset()
			fmt.Fprintln(c.out, "(new conversation)")
			continue
		}

		// Errors are already reported; the conversation goes on.
		_ = c.turn(ctx, line, interrupts)
	}
}
