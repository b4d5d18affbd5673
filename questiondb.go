package wikitrivia

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoQuestions is returned when a read finds no matching questions.
var ErrNoQuestions = fmt.Errorf("no questions available")

// DB is the durable question store. The whole batch is replaced wholesale
// on each generation cycle; readers only ever see a complete batch.
type DB struct {
	db *sql.DB
}

// OpenDB opens a question database, creating the file if needed.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			question TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			incorrect_answers TEXT NOT NULL,
			description_facts TEXT NOT NULL,
			images TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			generated_at DATETIME NOT NULL,
			question_count INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// ReplaceBatch writes a finished batch in one transaction, dropping the
// previous batch entirely. Readers see either the old batch or the new
// one, never a mix.
func (db *DB) ReplaceBatch(questions []GeneratedQuestion) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM questions"); err != nil {
		return fmt.Errorf("failed to clear previous batch: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO questions
		(id, category, question, correct_answer, incorrect_answers, description_facts, images, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		questionJSON, err := toJSON(q.Question)
		if err != nil {
			return err
		}
		correctJSON, err := toJSON(q.CorrectAnswer)
		if err != nil {
			return err
		}
		incorrectJSON, err := toJSON(q.IncorrectAnswers)
		if err != nil {
			return err
		}
		factsJSON, err := toJSON(q.Facts)
		if err != nil {
			return err
		}
		imagesJSON, err := toJSON(q.Images)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(q.ID, q.Category, questionJSON, correctJSON, incorrectJSON, factsJSON, imagesJSON, q.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO batch_info (id, generated_at, question_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET generated_at = excluded.generated_at, question_count = excluded.question_count`,
		time.Now().UTC(), len(questions),
	); err != nil {
		return fmt.Errorf("failed to record batch info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Ready reports whether a finished batch has been persisted. Serving
// before this returns true must answer "not ready" rather than an empty
// result.
func (db *DB) Ready() (bool, error) {
	var count int
	err := db.db.QueryRow("SELECT question_count FROM batch_info WHERE id = 1").Scan(&count)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read batch info: %w", err)
	}
	return count > 0, nil
}

// CountQuestions returns the number of stored questions.
func (db *DB) CountQuestions() (int, error) {
	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM questions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// GetQuestions returns up to n random questions, optionally filtered by
// category.
func (db *DB) GetQuestions(n int, category string) ([]GeneratedQuestion, error) {
	query := "SELECT id, category, question, correct_answer, incorrect_answers, description_facts, images, created_at FROM questions"
	var args []interface{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY RANDOM() LIMIT ?"
	args = append(args, n)

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []GeneratedQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// RandomQuestion returns one random question whose id is not in exclude.
// Returns ErrNoQuestions when everything has been excluded or the store
// is empty.
func (db *DB) RandomQuestion(exclude []string) (*GeneratedQuestion, error) {
	query := "SELECT id, category, question, correct_answer, incorrect_answers, description_facts, images, created_at FROM questions"
	var args []interface{}
	if len(exclude) > 0 {
		placeholders := strings.Repeat("?,", len(exclude))
		query += " WHERE id NOT IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += " ORDER BY RANDOM() LIMIT 1"

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get random question: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading random question: %w", err)
		}
		return nil, ErrNoQuestions
	}
	q, err := scanQuestion(rows)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanQuestion(rows *sql.Rows) (GeneratedQuestion, error) {
	var q GeneratedQuestion
	var questionJSON, correctJSON, incorrectJSON, factsJSON, imagesJSON string
	if err := rows.Scan(&q.ID, &q.Category, &questionJSON, &correctJSON, &incorrectJSON, &factsJSON, &imagesJSON, &q.CreatedAt); err != nil {
		return q, fmt.Errorf("failed to scan question: %w", err)
	}
	if err := fromJSON(questionJSON, &q.Question); err != nil {
		return q, err
	}
	if err := fromJSON(correctJSON, &q.CorrectAnswer); err != nil {
		return q, err
	}
	if err := fromJSON(incorrectJSON, &q.IncorrectAnswers); err != nil {
		return q, err
	}
	if err := fromJSON(factsJSON, &q.Facts); err != nil {
		return q, err
	}
	if err := fromJSON(imagesJSON, &q.Images); err != nil {
		return q, err
	}
	return q, nil
}

func toJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}

func fromJSON(data string, v interface{}) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return nil
}
