// cardctl is a scriptable probe for a running cardroom server: list the
// lobby, create tables, watch a table's event stream, or dump the stats
// endpoint. Output is line oriented so it composes with shell pipelines.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/websocket"

	"github.com/cardroom/cardroom/pkg/wire"
)

var (
	serverURL = flag.String("server", "ws://localhost:8080/ws", "Websocket server URL")
	nickname  = flag.String("nick", "cardctl", "Nickname to identify as")
	timeout   = flag.Duration("timeout", 10*time.Second, "How long to wait for replies")
	verbose   = flag.Bool("v", false, "Dump full message structures")

	kind  = flag.String("kind", "euchre", "Game kind for create")
	name  = flag.String("name", "", "Table name for create")
	seats = flag.Int("seats", 0, "Seats for create (0 = kind default)")
	table = flag.String("table", "", "Table id for watch")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: cardctl [flags] <command>

Commands:
  lobby    list the lobby tables
  create   create a table (-kind, -name, -seats)
  watch    join a table and print its event stream (-table)
  stats    dump the server stats endpoint

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "lobby":
		err = withConn(cmdLobby)
	case "create":
		err = withConn(cmdCreate)
	case "watch":
		err = withConn(cmdWatch)
	case "stats":
		err = cmdStats()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withConn dials the server, performs the lobby handshake and hands the
// connection to fn.
func withConn(fn func(*websocket.Conn) error) error {
	url := *serverURL
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	dialer := websocket.Dialer{HandshakeTimeout: *timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	join := wire.MustCompose(wire.MsgJoinLobby, wire.JoinLobby{Nickname: *nickname})
	if err := conn.WriteJSON(join); err != nil {
		return err
	}
	return fn(conn)
}

// await reads messages until one of the wanted types arrives.
func await(conn *websocket.Conn, want ...wire.Type) (*wire.Message, error) {
	deadline := time.Now().Add(*timeout)
	for {
		conn.SetReadDeadline(deadline)
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		if *verbose {
			spew.Fdump(os.Stderr, msg)
		}
		if msg.Type == wire.MsgError {
			var e wire.Error
			msg.Decode(&e)
			return nil, fmt.Errorf("server error %s: %s", e.Code, e.Message)
		}
		for _, t := range want {
			if msg.Type == t {
				return &msg, nil
			}
		}
	}
}

func cmdLobby(conn *websocket.Conn) error {
	msg, err := await(conn, wire.MsgLobbyState)
	if err != nil {
		return err
	}
	var ls wire.LobbyState
	if err := msg.Decode(&ls); err != nil {
		return err
	}
	fmt.Printf("# %d players connected, %d tables\n",
		ls.ConnectedPlayers, len(ls.Tables))
	for _, t := range ls.Tables {
		status := "open"
		if t.Started {
			status = "started"
		}
		fmt.Printf("%s\t%s\t%s\t%d/%d\t%s\n",
			t.ID, t.Kind, t.Name, len(t.Players), t.MaxPlayers, status)
	}
	return nil
}

func cmdCreate(conn *websocket.Conn) error {
	// The welcome must land first so the create is attributed to us.
	if _, err := await(conn, wire.MsgWelcome); err != nil {
		return err
	}
	create := wire.MustCompose(wire.MsgCreateTable, wire.CreateTable{
		Kind:       *kind,
		Name:       *name,
		MaxPlayers: *seats,
	})
	if err := conn.WriteJSON(create); err != nil {
		return err
	}
	msg, err := await(conn, wire.MsgJoinedTable)
	if err != nil {
		return err
	}
	var jt wire.JoinedTable
	if err := msg.Decode(&jt); err != nil {
		return err
	}
	fmt.Println(jt.Table.ID)
	return nil
}

func cmdWatch(conn *websocket.Conn) error {
	if *table == "" {
		return fmt.Errorf("watch requires -table")
	}
	if _, err := await(conn, wire.MsgWelcome); err != nil {
		return err
	}
	join := wire.MustCompose(wire.MsgJoinTable, wire.JoinTable{
		TableID:   *table,
		SeatIndex: -1,
	})
	if err := conn.WriteJSON(join); err != nil {
		return err
	}

	// Stream until the connection drops or the process is interrupted.
	for {
		conn.SetReadDeadline(time.Time{})
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if *verbose {
			spew.Dump(msg)
			continue
		}
		line := map[string]any{"type": msg.Type}
		if msg.RoomID != "" {
			line["roomId"] = msg.RoomID
		}
		if len(msg.Payload) > 0 {
			line["payload"] = json.RawMessage(msg.Payload)
		}
		out, err := json.Marshal(line)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
}

// cmdStats fetches the HTTP stats endpoint that lives next to the
// websocket path.
func cmdStats() error {
	url := *serverURL
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	url = strings.Replace(url, "ws://", "http://", 1)
	url = strings.Replace(url, "wss://", "https://", 1)
	if i := strings.Index(url, "/ws"); i >= 0 {
		url = url[:i]
	}
	url += "/stats"

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}
