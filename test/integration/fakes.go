package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Gateway is a fake chat gateway recording outbound messages.
type Gateway struct {
	*httptest.Server

	mu   sync.Mutex
	msgs map[string][]string
}

// NewGateway starts a fake gateway accepting POST /send.
func NewGateway(t *testing.T) *Gateway {
	t.Helper()

	g := &Gateway{msgs: map[string][]string{}}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			To   string `json:"to"`
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.msgs[body.To] = append(g.msgs[body.To], body.Text)
		g.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(g.Close)
	return g
}

// Messages returns what was sent to a recipient.
func (g *Gateway) Messages(to string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.msgs[to]...)
}

// Panel is a fake hosting panel application API.
type Panel struct {
	*httptest.Server

	mu      sync.Mutex
	servers map[string]int // external id -> server id
	users   int
}

// NewPanel starts a fake panel.
func NewPanel(t *testing.T) *Panel {
	t.Helper()

	p := &Panel{servers: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/application/nodes", func(w http.ResponseWriter, r *http.Request) {
		writeObject(w, http.StatusOK, map[string]any{
			"object": "list",
			"data":   []any{map[string]any{"object": "node", "attributes": map[string]any{"id": 1, "name": "node-1"}}},
		})
	})
	mux.HandleFunc("GET /api/application/servers/external/{id}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		id, ok := p.servers[r.PathValue("id")]
		p.mu.Unlock()
		if !ok {
			writeObject(w, http.StatusNotFound, map[string]any{
				"errors": []any{map[string]any{"code": "NotFoundHttpException", "status": "404", "detail": "not found"}},
			})
			return
		}
		writeObject(w, http.StatusOK, attributes("server", map[string]any{"id": id, "external_id": r.PathValue("id")}))
	})
	mux.HandleFunc("POST /api/application/users", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		p.users++
		id := p.users
		p.mu.Unlock()
		writeObject(w, http.StatusCreated, attributes("user", map[string]any{
			"id": id, "username": req["username"], "email": req["email"],
		}))
	})
	mux.HandleFunc("POST /api/application/servers", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExternalID string `json:"external_id"`
			User       int    `json:"user"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		id := 100 + len(p.servers) + 1
		p.servers[req.ExternalID] = id
		p.mu.Unlock()
		writeObject(w, http.StatusCreated, attributes("server", map[string]any{
			"id": id, "identifier": strings.ToLower(req.ExternalID[3:]), "external_id": req.ExternalID, "user": req.User,
		}))
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

// ServerCount returns the number of servers created.
func (p *Panel) ServerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.servers)
}

func attributes(object string, attrs map[string]any) map[string]any {
	return map[string]any{"object": object, "attributes": attrs}
}

func writeObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
