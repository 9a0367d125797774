package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send wraps a payload in the {"type","payload"} envelope and sends it.
func send(c *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := map[string]json.RawMessage{
		"type":    json.RawMessage(`"` + msgType + `"`),
		"payload": data,
	}
	return c.WriteJSON(msg)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	var roomID, playerID string

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var msg struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Printf("Received invalid message: %s", string(message))
				continue
			}
			log.Printf("<- RECV (%s): %s", msg.Type, string(msg.Payload))

			// Capture our identity so later commands can reference it.
			if msg.Type == "player-joined" {
				var joined struct {
					RoomID   string `json:"roomId"`
					PlayerID string `json:"playerId"`
				}
				if err := json.Unmarshal(msg.Payload, &joined); err == nil {
					roomID = joined.RoomID
					playerID = joined.PlayerID
					log.Printf("Joined room %s as %s", roomID, playerID)
				}
			}
		}
	}()

	// Ask for the lobby right away
	log.Println("Requesting room list...")
	if err := send(c, "request-rooms", struct{}{}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: join <room> <name> | ready | play <cardId> <answer...> | draw [type] | leave | state")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "join":
				if len(fields) < 3 {
					log.Println("Usage: join <room> <name>")
					continue
				}
				err = send(c, "join-room", map[string]string{"roomId": fields[1], "playerName": fields[2]})
			case "ready":
				err = send(c, "player-ready", map[string]string{"roomId": roomID, "playerId": playerID})
			case "play":
				if len(fields) < 3 {
					log.Println("Usage: play <cardId> <answer...>")
					continue
				}
				err = send(c, "play-card", map[string]string{
					"roomId":   roomID,
					"playerId": playerID,
					"cardId":   fields[1],
					"answer":   strings.Join(fields[2:], " "),
				})
			case "draw":
				payload := map[string]string{"roomId": roomID, "playerId": playerID}
				if len(fields) > 1 {
					payload["cardType"] = fields[1]
				}
				err = send(c, "draw-card", payload)
			case "leave":
				err = send(c, "leave-room", map[string]string{"roomId": roomID, "playerId": playerID})
			case "state":
				err = send(c, "request-game-state", map[string]string{"roomId": roomID})
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
