package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CTAG07/Markovian/pkg/speaker"
)

// ErrSpeakerNotFound is returned when a named speaker does not exist.
var ErrSpeakerNotFound = errors.New("corpus: speaker not found")

// SetupSchema initializes the corpus tables in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaSpeakers = `
CREATE TABLE IF NOT EXISTS corpus_speakers (
    speaker_id INTEGER PRIMARY KEY,
    speaker_name TEXT NOT NULL UNIQUE
);
`
		schemaSamples = `
CREATE TABLE IF NOT EXISTS corpus_samples (
    sample_id INTEGER PRIMARY KEY,
    speaker_id INTEGER NOT NULL REFERENCES corpus_speakers (speaker_id),
    sample_text TEXT NOT NULL,
    sample_runes INTEGER NOT NULL,
    added_unix INTEGER NOT NULL
);
`
		schemaIdentifications = `
CREATE TABLE IF NOT EXISTS corpus_identifications (
    identification_id INTEGER PRIMARY KEY,
    speaker_a TEXT NOT NULL,
    speaker_b TEXT NOT NULL,
    model_order INTEGER NOT NULL,
    query_runes INTEGER NOT NULL,
    score_a REAL NOT NULL,
    score_b REAL NOT NULL,
    label TEXT NOT NULL,
    created_unix INTEGER NOT NULL
);
`
		indexSamples = `CREATE INDEX IF NOT EXISTS corpus_samples_speaker ON corpus_samples (speaker_id, sample_id);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaSpeakers, schemaSamples, schemaIdentifications, indexSamples} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// SpeakerInfo summarizes a stored speaker.
type SpeakerInfo struct {
	Name    string `json:"name"`
	Samples int    `json:"samples"`
	Runes   int    `json:"runes"`
}

// Identification is one logged comparison of a query against two speakers.
type Identification struct {
	ID         int            `json:"id"`
	SpeakerA   string         `json:"speaker_a"`
	SpeakerB   string         `json:"speaker_b"`
	Order      int            `json:"order"`
	QueryRunes int            `json:"query_runes"`
	Result     speaker.Result `json:"result"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store reads and writes speaker samples. It holds prepared statements and
// must be closed when no longer needed.
type Store struct {
	db                *sql.DB
	stmtGetOrAddName  *sql.Stmt
	stmtGetSpeakerID  *sql.Stmt
	stmtAddSample     *sql.Stmt
	stmtSpeakerText   *sql.Stmt
	stmtListSpeakers  *sql.Stmt
	stmtAddIdentified *sql.Stmt
	stmtHistory       *sql.Stmt
	logger            *slog.Logger
}

// NewStore creates a Store on a database prepared with SetupSchema. It
// pre-compiles all statements, returning an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetOrAddName, `INSERT INTO corpus_speakers (speaker_name) VALUES (?) ON CONFLICT(speaker_name) DO UPDATE SET speaker_name=excluded.speaker_name RETURNING speaker_id;`},
		{&s.stmtGetSpeakerID, `SELECT speaker_id FROM corpus_speakers WHERE speaker_name = ?;`},
		{&s.stmtAddSample, `INSERT INTO corpus_samples (speaker_id, sample_text, sample_runes, added_unix) VALUES (?, ?, ?, ?);`},
		{&s.stmtSpeakerText, `SELECT sample_text FROM corpus_samples WHERE speaker_id = ? ORDER BY sample_id;`},
		{&s.stmtListSpeakers, `
SELECT s.speaker_name, COUNT(m.sample_id), coalesce(SUM(m.sample_runes), 0)
FROM corpus_speakers s LEFT JOIN corpus_samples m ON m.speaker_id = s.speaker_id
GROUP BY s.speaker_id ORDER BY s.speaker_name;`},
		{&s.stmtAddIdentified, `INSERT INTO corpus_identifications (speaker_a, speaker_b, model_order, query_runes, score_a, score_b, label, created_unix) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING identification_id;`},
		{&s.stmtHistory, `SELECT identification_id, speaker_a, speaker_b, model_order, query_runes, score_a, score_b, label, created_unix FROM corpus_identifications ORDER BY identification_id DESC LIMIT ?;`},
	}
	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = stmt
	}
	return s, nil
}

// Close releases all prepared statements held by the Store.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetOrAddName,
		s.stmtGetSpeakerID,
		s.stmtAddSample,
		s.stmtSpeakerText,
		s.stmtListSpeakers,
		s.stmtAddIdentified,
		s.stmtHistory,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// AddSpeaker creates a speaker with no samples. Adding an existing speaker
// is a no-op.
func (s *Store) AddSpeaker(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("corpus: speaker name is required")
	}
	var id int
	return s.stmtGetOrAddName.QueryRowContext(ctx, name).Scan(&id)
}

// AddSample appends text to a speaker's corpus, creating the speaker if needed.
func (s *Store) AddSample(ctx context.Context, name, text string) error {
	if name == "" {
		return errors.New("corpus: speaker name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var speakerID int
	if err = tx.StmtContext(ctx, s.stmtGetOrAddName).QueryRowContext(ctx, name).Scan(&speakerID); err != nil {
		return fmt.Errorf("failed to get or insert speaker '%s': %w", name, err)
	}
	runes := utf8.RuneCountInString(text)
	if _, err = tx.StmtContext(ctx, s.stmtAddSample).ExecContext(ctx, speakerID, text, runes, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to insert sample for '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Sample added",
		slog.String("speaker", name),
		slog.Int("speaker_id", speakerID),
		slog.Int("runes", runes),
	)
	return tx.Commit()
}

// Text returns all of a speaker's samples joined in insertion order.
func (s *Store) Text(ctx context.Context, name string) (string, error) {
	speakerID, err := s.speakerID(ctx, name)
	if err != nil {
		return "", err
	}

	rows, err := s.stmtSpeakerText.QueryContext(ctx, speakerID)
	if err != nil {
		return "", err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var sb strings.Builder
	for rows.Next() {
		var sample string
		if err = rows.Scan(&sample); err != nil {
			return "", err
		}
		sb.WriteString(sample)
	}
	if err = rows.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Speakers lists every stored speaker ordered by name.
func (s *Store) Speakers(ctx context.Context) ([]SpeakerInfo, error) {
	rows, err := s.stmtListSpeakers.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	speakers := make([]SpeakerInfo, 0)
	for rows.Next() {
		var info SpeakerInfo
		if err = rows.Scan(&info.Name, &info.Samples, &info.Runes); err != nil {
			return nil, err
		}
		speakers = append(speakers, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return speakers, nil
}

// RemoveSpeaker deletes a speaker and all of its samples. The operation is
// performed within a transaction.
func (s *Store) RemoveSpeaker(ctx context.Context, name string) error {
	speakerID, err := s.speakerID(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM corpus_samples WHERE speaker_id = ?", speakerID); err != nil {
		return fmt.Errorf("failed to remove samples for speaker %d: %w", speakerID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM corpus_speakers WHERE speaker_id = ?", speakerID); err != nil {
		return fmt.Errorf("failed to remove speaker %d: %w", speakerID, err)
	}

	s.logger.InfoContext(ctx, "Speaker removed successfully",
		slog.String("speaker", name),
		slog.Int("speaker_id", speakerID),
	)
	return tx.Commit()
}

// RecordIdentification logs a comparison and returns it with its assigned
// id. A zero CreatedAt is replaced by the current time.
func (s *Store) RecordIdentification(ctx context.Context, ident Identification) (Identification, error) {
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now()
	}
	err := s.stmtAddIdentified.QueryRowContext(ctx,
		ident.SpeakerA, ident.SpeakerB, ident.Order, ident.QueryRunes,
		ident.Result.ScoreA, ident.Result.ScoreB, string(ident.Result.Label),
		ident.CreatedAt.Unix(),
	).Scan(&ident.ID)
	if err != nil {
		return Identification{}, fmt.Errorf("failed to record identification: %w", err)
	}
	return ident, nil
}

// History returns up to limit logged identifications, newest first. A
// non-positive limit returns the last 20.
func (s *Store) History(ctx context.Context, limit int) ([]Identification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.stmtHistory.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	history := make([]Identification, 0)
	for rows.Next() {
		var ident Identification
		var label string
		var created int64
		if err = rows.Scan(&ident.ID, &ident.SpeakerA, &ident.SpeakerB, &ident.Order, &ident.QueryRunes,
			&ident.Result.ScoreA, &ident.Result.ScoreB, &label, &created); err != nil {
			return nil, err
		}
		ident.Result.Label = speaker.Label(label)
		ident.CreatedAt = time.Unix(created, 0)
		history = append(history, ident)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) speakerID(ctx context.Context, name string) (int, error) {
	var id int
	err := s.stmtGetSpeakerID.QueryRowContext(ctx, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrSpeakerNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("could not look up speaker '%s': %w", name, err)
	}
	return id, nil
}
