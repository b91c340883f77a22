package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

const (
	// GenesisHash is the initial hash for the first event in the chain.
	GenesisHash = "sha256:genesis"

	// HashPrefix is prepended to all hash values.
	HashPrefix = "sha256:"
)

// FileWriter writes audit events to a JSONL file with hash chaining.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	lastHash string
	path     string
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter creates a file-based audit writer. If the file already
// holds events, the chain continues from the last one.
func NewFileWriter(path string) (*FileWriter, error) {
	lastHash, err := lastEventHash(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read last hash from existing log: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileWriter{
		file:     file,
		lastHash: lastHash,
		path:     path,
	}, nil
}

// lastEventHash scans an existing log for the hash of its final event.
// A missing or empty log starts a fresh chain at the genesis hash.
func lastEventHash(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(last) == 0 {
		return GenesisHash, nil
	}

	var tail struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(last, &tail); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}
	if tail.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}
	return tail.Hash, nil
}

// Write logs an audit event with hash chaining.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	event.HashPrev = w.lastHash

	// Hash: SHA256(canonical_json || prev_hash)
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	hash := calculateHash(canonical, w.lastHash)
	event.Hash = hash

	eventJSON, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := w.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = hash
	return nil
}

// Close closes the audit log file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return err
		}
		return w.file.Close()
	}
	return nil
}

// LastHash returns the hash of the last written event.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the file path of the audit log.
func (w *FileWriter) Path() string {
	return w.path
}

// calculateHash computes SHA256(data || prevHash).
func calculateHash(data []byte, prevHash string) string {
	h := sha256.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte(prevHash))
	return HashPrefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyChain replays the hash chain of an audit log file from the
// genesis hash. It returns the number of intact events; on a broken
// chain the count covers the events before the break.
func VerifyChain(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	prev := GenesisHash
	verified := 0
	line := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		next, err := replayEvent(raw, prev)
		if err != nil {
			return verified, fmt.Errorf("line %d: %w", line, err)
		}
		prev = next
		verified++
	}
	if err := scanner.Err(); err != nil {
		return verified, fmt.Errorf("scan error: %w", err)
	}
	return verified, nil
}

// replayEvent checks one serialized event against the expected
// predecessor hash and returns the hash the next event must chain to.
func replayEvent(raw []byte, prev string) (string, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	if event.HashPrev != prev {
		return "", fmt.Errorf("hash chain broken: expected prev=%s, got prev=%s", prev, event.HashPrev)
	}
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}
	if want := calculateHash(canonical, event.HashPrev); event.Hash != want {
		return "", fmt.Errorf("hash mismatch: expected=%s, got=%s", want, event.Hash)
	}
	return event.Hash, nil
}
