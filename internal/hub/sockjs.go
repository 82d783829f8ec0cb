package hub

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Handler serves SockJS sessions under prefix. Clients may pick a view with
// ?view= on connect or later with a subscribe message.
func Handler(h *Hub, prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		view := ""
		if req := session.Request(); req != nil {
			view = strings.TrimSpace(req.URL.Query().Get("view"))
		}
		if !ValidView(view) {
			_ = session.Close(4000, "unknown view")
			return
		}

		client := &Client{ID: uuid.NewString(), Send: make(chan []byte, 16), View: view}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			h.Handle(client, []byte(msg))
		}
	})
}
