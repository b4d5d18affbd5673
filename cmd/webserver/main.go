package main

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"wikitrivia"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the persisted question batch over a JSON API.
type Server struct {
	db        *wikitrivia.DB
	store     *sessions.CookieStore
	languages []string
	topics    map[string]bool
}

func init() {
	// Session values hold the list of question ids already served.
	gob.Register([]string{})
}

func main() {
	var (
		addr     = flag.String("addr", ":8005", "HTTP listen address")
		dbPath   = flag.String("db", "./questions.db", "SQLite database path")
		catalog  = flag.String("categories", "categories.json", "Path to the category catalog")
		count    = flag.Int("questions", 40, "Questions per generation cycle")
		refresh  = flag.Duration("refresh", 24*time.Hour, "Interval between batch regenerations")
		endpoint = flag.String("endpoint", wikitrivia.DefaultEndpoint, "SPARQL endpoint URL")
		qps      = flag.Float64("qps", 5, "Maximum SPARQL queries per second")
		timeout  = flag.Duration("timeout", 15*time.Minute, "Per-cycle generation timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	wikitrivia.SetVerbose(*verbose)

	cat, err := wikitrivia.LoadCatalog(*catalog)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	db, err := wikitrivia.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "wikitrivia-dev-secret"
		log.Printf("SESSION_SECRET not set, using insecure default")
	}

	topics := make(map[string]bool)
	for _, name := range cat.Names() {
		topics[name] = true
	}

	server := &Server{
		db:        db,
		store:     sessions.NewCookieStore([]byte(secret)),
		languages: cat.Languages(),
		topics:    topics,
	}

	client := wikitrivia.NewWikidataClient(*endpoint, *qps)
	manager := wikitrivia.NewQuestionBatchManager(client, cat, wikitrivia.DefaultConfig())
	go refreshLoop(db, manager, *count, *refresh, *timeout)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /questions", server.handleQuestions)
	mux.HandleFunc("GET /question/random", server.handleRandomQuestion)
	mux.HandleFunc("GET /health", server.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	log.Printf("Question service listening at %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// refreshLoop regenerates the batch immediately and then on every tick.
// A failed cycle keeps the previous batch in place.
func refreshLoop(db *wikitrivia.DB, manager *wikitrivia.QuestionBatchManager, count int, interval, timeout time.Duration) {
	generate := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		batch, err := manager.Generate(ctx, nil, count)
		if err != nil {
			log.Printf("Batch generation failed, keeping previous batch: %v", err)
			return
		}
		if err := db.ReplaceBatch(batch); err != nil {
			log.Printf("Failed to store batch: %v", err)
			return
		}
		log.Printf("Batch refreshed with %d questions", len(batch))
	}

	generate()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		generate()
	}
}

// checkReady writes the "not ready" response and returns false when no
// batch has been persisted yet.
func (s *Server) checkReady(w http.ResponseWriter) bool {
	ready, err := s.db.Ready()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check readiness")
		return false
	}
	if !ready {
		writeError(w, http.StatusServiceUnavailable, "questions not ready")
		return false
	}
	return true
}

// handleQuestions serves up to n random questions, optionally filtered by
// topic and projected to a single language.
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if !s.checkReady(w) {
		return
	}

	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid question count")
			return
		}
		n = parsed
	}

	lang := r.URL.Query().Get("lang")
	if lang != "" && !s.supportedLanguage(lang) {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic != "" && !s.topics[topic] {
		writeError(w, http.StatusBadRequest, "unknown topic")
		return
	}

	questions, err := s.db.GetQuestions(n, topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load questions")
		return
	}

	if lang != "" {
		for i := range questions {
			questions[i] = questions[i].ForLanguage(lang)
		}
	}

	writeJSON(w, http.StatusOK, questions)
}

// handleRandomQuestion serves one random question the caller's session
// has not seen yet. When the batch is used up the session starts over.
func (s *Server) handleRandomQuestion(w http.ResponseWriter, r *http.Request) {
	if !s.checkReady(w) {
		return
	}

	session, _ := s.store.Get(r, "wikitrivia")
	seen, _ := session.Values["seen"].([]string)

	question, err := s.db.RandomQuestion(seen)
	if errors.Is(err, wikitrivia.ErrNoQuestions) && len(seen) > 0 {
		seen = nil
		question, err = s.db.RandomQuestion(nil)
	}
	if errors.Is(err, wikitrivia.ErrNoQuestions) {
		writeError(w, http.StatusServiceUnavailable, "questions not ready")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load question")
		return
	}

	session.Values["seen"] = append(seen, question.ID)
	if err := session.Save(r, w); err != nil {
		log.Printf("Failed to save session: %v", err)
	}

	writeJSON(w, http.StatusOK, question)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready, err := s.db.Ready()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check readiness")
		return
	}
	count, _ := s.db.CountQuestions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"ready":     ready,
		"questions": count,
	})
}

func (s *Server) supportedLanguage(lang string) bool {
	for _, l := range s.languages {
		if l == lang {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
