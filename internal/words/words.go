// internal/words/words.go
package words

import (
	"bufio"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed default_words.txt
var defaultWords string

// ErrEmpty is returned when a word list yields no usable words.
var ErrEmpty = errors.New("word list is empty")

// Source hands out random words from a fixed list. It is safe for
// concurrent use.
type Source struct {
	mu    sync.Mutex
	rng   *rand.Rand
	words []string
}

// New builds a Source over the given words. Blank entries are skipped.
func New(words []string, seed int64) (*Source, error) {
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		cleaned = append(cleaned, w)
	}
	if len(cleaned) == 0 {
		return nil, ErrEmpty
	}
	return &Source{rng: rand.New(rand.NewSource(seed)), words: cleaned}, nil
}

// Default returns a Source backed by the embedded word list.
func Default(seed int64) *Source {
	src, err := New(parseLines(strings.NewReader(defaultWords)), seed)
	if err != nil {
		panic(fmt.Sprintf("embedded word list: %v", err))
	}
	return src
}

// Load reads every *.txt and *.csv file in dir. Text files hold one word per
// line; CSV files contribute the first column of each record. Files are read
// in name order so a seeded Source is reproducible.
func Load(dir string, seed int64) (*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read words dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []string
	for _, name := range names {
		var words []string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt":
			words, err = readFile(filepath.Join(dir, name), parseLines)
		case ".csv":
			words, err = readFile(filepath.Join(dir, name), parseCSV)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, words...)
	}
	src, err := New(all, seed)
	if err != nil {
		return nil, fmt.Errorf("words dir %s: %w", dir, err)
	}
	return src, nil
}

func readFile(path string, parse func(io.Reader) []string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f), nil
}

func parseLines(r io.Reader) []string {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseCSV keeps the first column and skips records it cannot parse.
func parseCSV(r io.Reader) []string {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(rec) == 0 {
			continue
		}
		out = append(out, rec[0])
	}
	return out
}

// RandomWord returns a uniformly chosen word.
func (s *Source) RandomWord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words[s.rng.Intn(len(s.words))]
}

// Len is the number of words available.
func (s *Source) Len() int {
	return len(s.words)
}
