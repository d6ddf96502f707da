package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/domain"
)

const (
	dirPerms       = 0o750
	ticketsDirName = "tickets"
	legacyFileName = "tickets.json"
	modsFileName   = "moderators.json"
)

// FileStore keeps one JSON file per ticket plus a single moderators file.
// Every write goes to a temporary file that is renamed over the target.
type FileStore struct {
	dir        string
	ticketsDir string
	legacyFile string
	modsFile   string
	logger     *zap.Logger
}

// NewFileStore prepares the data directory layout.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{
		dir:        dir,
		ticketsDir: filepath.Join(dir, ticketsDirName),
		legacyFile: filepath.Join(dir, legacyFileName),
		modsFile:   filepath.Join(dir, modsFileName),
		logger:     logger,
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) ensureDirs() error {
	if err := os.MkdirAll(s.ticketsDir, dirPerms); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// LoadTickets reads per-ticket records. When none exist it migrates the
// legacy single-file array and rewrites it in the per-record layout.
func (s *FileStore) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.ticketsDir)
	if err != nil {
		return nil, fmt.Errorf("read tickets dir: %w", err)
	}

	tickets := make([]domain.Ticket, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var t domain.Ticket
		if err := readJSON(filepath.Join(s.ticketsDir, entry.Name()), &t); err != nil {
			s.logger.Warn("skipping unreadable ticket record", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if t.ID == "" {
			continue
		}
		tickets = append(tickets, t)
	}
	if len(tickets) > 0 {
		return tickets, nil
	}

	legacy, err := s.loadLegacy()
	if err != nil {
		return nil, err
	}
	if len(legacy) == 0 {
		return tickets, nil
	}
	s.logger.Info("migrating legacy tickets file", zap.Int("count", len(legacy)))
	if err := s.SaveTickets(ctx, legacy); err != nil {
		return nil, fmt.Errorf("migrate legacy tickets: %w", err)
	}
	return legacy, nil
}

func (s *FileStore) loadLegacy() ([]domain.Ticket, error) {
	var raw []domain.Ticket
	err := readJSON(s.legacyFile, &raw)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("legacy tickets file unreadable", zap.Error(err))
		return nil, nil
	}
	out := raw[:0]
	for _, t := range raw {
		if t.ID != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// SaveTickets writes each ticket to its own record. A failure on one ticket
// does not stop the others; the combined error is returned.
func (s *FileStore) SaveTickets(_ context.Context, tickets []domain.Ticket) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	var errs []error
	for i := range tickets {
		path, err := s.ticketPath(tickets[i].ID)
		if err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: err})
			continue
		}
		if err := writeJSONAtomic(path, tickets[i]); err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: fmt.Errorf("write: %w", err)})
		}
	}
	return errors.Join(errs...)
}

// LoadModerators reads the moderators file; a missing or corrupt file yields none.
func (s *FileStore) LoadModerators(_ context.Context) ([]domain.Moderator, error) {
	var mods []domain.Moderator
	err := readJSON(s.modsFile, &mods)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("moderators file unreadable", zap.Error(err))
		return nil, nil
	}
	return mods, nil
}

// SaveModerators rewrites the moderators file.
func (s *FileStore) SaveModerators(_ context.Context, moderators []domain.Moderator) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	if moderators == nil {
		moderators = []domain.Moderator{}
	}
	if err := writeJSONAtomic(s.modsFile, moderators); err != nil {
		return fmt.Errorf("write moderators: %w", err)
	}
	return nil
}

// Ping checks the data directory is reachable.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.ticketsDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.ticketsDir)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) ticketPath(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid ticket id %q", id)
	}
	return filepath.Join(s.ticketsDir, id+".json"), nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
