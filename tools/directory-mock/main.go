package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Serves the directory endpoints the attendance service reads, backed by a
// fixed in-memory roster.

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	projects = map[string]string{"p-1": "Apollo", "p-2": "Zephyr", "p-3": "Internal Tools"}
	tasks    = map[string]string{"t-1": "Design", "t-2": "Review", "t-3": "Support Rotation"}
)

func employeeIDs(n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("load-test-emp-%d", i))
	}
	return append(ids, "emp-1", "emp-2", "emp-3")
}

func writeItems(w http.ResponseWriter, items []item) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func namesHandler(source map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []item
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if name, ok := source[id]; ok {
				items = append(items, item{ID: id, Name: name})
			}
		}
		writeItems(w, items)
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	roster := make(map[string]bool)
	var active []item
	for _, id := range employeeIDs(5000) {
		roster[id] = true
		active = append(active, item{ID: id, Name: id})
	}

	r := mux.NewRouter()
	r.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) {
		writeItems(w, active)
	}).Methods(http.MethodGet)
	r.HandleFunc("/employees/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !roster[id] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(item{ID: id, Name: id})
	}).Methods(http.MethodGet)
	r.HandleFunc("/projects", namesHandler(projects)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", namesHandler(tasks)).Methods(http.MethodGet)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info().Str("method", r.Method).Str("uri", r.RequestURI).Msg("directory request")
			next.ServeHTTP(w, r)
		})
	})

	log.Info().Msg("Directory mock server starting on port 8081...")
	if err := http.ListenAndServe(":8081", r); err != nil {
		log.Fatal().Err(err).Msg("directory mock stopped")
	}
}
