package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/regwhelp/internal/gateway"
	"github.com/mcoot/regwhelp/internal/world"
)

const playHelp = `Type a chat line to send it; lines starting with / or & are commands,
for example /register "my-website-name". Local controls:
  :yes, :no          answer the most recent dialog
  :interact [id]     interact with an entity, default your companion
  :region <name>     move to another region
  :levelup           gain a level
  :die, :release     die, then release your spirit
  :quit              leave the world`

func newPlayCmd() *cobra.Command {
	var (
		name   string
		region string
	)

	cmd := &cobra.Command{
		Use:   "play <account>",
		Short: "Join the world as a player",
		Long:  "Connect to the world over a websocket.\n\n" + playHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("account", args[0])
			if name != "" {
				q.Set("name", name)
			}
			if region != "" {
				q.Set("region", region)
			}

			conn, _, err := websocket.DefaultDialer.Dial(client.WebsocketURL("/ws?"+q.Encode()), nil)
			if err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}
			defer func() { _ = conn.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newPlaySession(conn, cmd.OutOrStdout(), cfg.Output == "json")
			return p.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Character name (defaults to the account)")
	cmd.Flags().StringVar(&region, "region", "", "Starting region")

	return cmd
}

// playSession relays between a terminal and a world connection
type playSession struct {
	conn       *websocket.Conn
	out        io.Writer
	jsonOutput bool

	writeMu sync.Mutex
	outMu   sync.Mutex

	mu         sync.Mutex
	lastDialog string
	companion  string
}

func newPlaySession(conn *websocket.Conn, out io.Writer, jsonOutput bool) *playSession {
	return &playSession{conn: conn, out: out, jsonOutput: jsonOutput}
}

// run reads lines from in until the server closes the connection, the
// user quits, or ctx is cancelled
func (p *playSession) run(ctx context.Context, in io.Reader) error {
	serverDone := make(chan error, 1)
	go func() { serverDone <- p.readServer() }()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case err := <-serverDone:
			return err
		case <-ctx.Done():
			p.closeConn()
			return waitServer(serverDone)
		case line, ok := <-lines:
			if !ok {
				p.closeConn()
				return waitServer(serverDone)
			}
			msg, err := p.translate(line)
			if err != nil {
				p.printf("! %s\n", err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := p.send(*msg); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
			if msg.Type == gateway.ClientQuit {
				return waitServer(serverDone)
			}
		}
	}
}

func waitServer(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return nil
	}
}

func (p *playSession) send(msg gateway.ClientMessage) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(msg)
}

func (p *playSession) closeConn() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
}

// readServer prints server messages until the connection closes
func (p *playSession) readServer() error {
	for {
		var msg world.Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				p.printf("Disconnected\n")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		p.track(msg)
		if p.jsonOutput {
			data, _ := json.Marshal(msg)
			p.printf("%s\n", data)
			continue
		}
		p.printf("%s\n", formatMessage(msg))
	}
}

func (p *playSession) track(msg world.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch msg.Type {
	case world.MessageDialog:
		p.lastDialog = msg.DialogID
	case world.MessageEntitySpawned:
		p.companion = msg.EntityID
	case world.MessageEntityRemoved:
		if p.companion == msg.EntityID {
			p.companion = ""
		}
	}
}

// translate turns a terminal line into a client message. A nil message
// with a nil error means there is nothing to send.
func (p *playSession) translate(line string) (*gateway.ClientMessage, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, ":") {
		return &gateway.ClientMessage{Type: gateway.ClientChat, Text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":yes", ":no":
		p.mu.Lock()
		dialogID := p.lastDialog
		p.lastDialog = ""
		p.mu.Unlock()
		if dialogID == "" {
			return nil, errors.New("no dialog to answer")
		}
		return &gateway.ClientMessage{Type: gateway.ClientAnswer, DialogID: dialogID, Accepted: fields[0] == ":yes"}, nil
	case ":interact":
		entityID := ""
		if len(fields) > 1 {
			entityID = fields[1]
		} else {
			p.mu.Lock()
			entityID = p.companion
			p.mu.Unlock()
		}
		if entityID == "" {
			return nil, errors.New("nothing to interact with")
		}
		return &gateway.ClientMessage{Type: gateway.ClientInteract, EntityID: entityID}, nil
	case ":region":
		if len(fields) < 2 {
			return nil, errors.New("usage: :region <name>")
		}
		return &gateway.ClientMessage{Type: gateway.ClientRegion, Region: fields[1]}, nil
	case ":levelup":
		return &gateway.ClientMessage{Type: gateway.ClientLevelUp}, nil
	case ":die":
		return &gateway.ClientMessage{Type: gateway.ClientDie}, nil
	case ":release":
		return &gateway.ClientMessage{Type: gateway.ClientRelease}, nil
	case ":quit":
		return &gateway.ClientMessage{Type: gateway.ClientQuit}, nil
	case ":help":
		p.printf("%s\n", playHelp)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown control %s, try :help", fields[0])
	}
}

func (p *playSession) printf(format string, args ...any) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// formatMessage renders a server message for the terminal
func formatMessage(msg world.Message) string {
	switch msg.Type {
	case world.MessageSystem:
		return "* " + msg.Text
	case world.MessageChat:
		return fmt.Sprintf("[%s] %s", msg.From, msg.Text)
	case world.MessageDialog:
		return fmt.Sprintf("? %s (answer with :yes or :no)", msg.Text)
	case world.MessageSay:
		return fmt.Sprintf("%s says: %s", msg.From, msg.Text)
	case world.MessageAttack:
		return fmt.Sprintf("%s attacks you!", msg.From)
	case world.MessageSpell:
		return fmt.Sprintf("%s begins casting spell %d (%dms)", msg.From, msg.EffectID, msg.CastMS)
	case world.MessageEntitySpawned:
		return fmt.Sprintf("%s appears beside you (%s)", msg.From, msg.EntityID)
	case world.MessageEntityRemoved:
		return fmt.Sprintf("%s disappears", msg.From)
	case world.MessageRegion:
		return "You are now in " + msg.Region
	default:
		return fmt.Sprintf("(%s) %s", msg.Type, msg.Text)
	}
}
