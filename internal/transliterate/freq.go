package transliterate

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// BaselineScore is given to words missing from the frequency dictionary.
const BaselineScore = 0.02

// FreqDict scores words by corpus frequency. A nil *FreqDict scores every
// word at BaselineScore.
type FreqDict struct {
	counts map[string]int
	max    int
}

// LoadFreqDict reads a word<TAB>count file.
func LoadFreqDict(path string) (*FreqDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frequency dictionary: %w", err)
	}
	defer f.Close()

	d, err := ParseFreqDict(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read frequency dictionary %s: %w", path, err)
	}
	return d, nil
}

// ParseFreqDict reads word<TAB>count lines. Blank lines, # comments and lines
// without a numeric count are skipped.
func ParseFreqDict(r io.Reader) (*FreqDict, error) {
	d := &FreqDict{counts: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, val, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			continue
		}
		d.counts[word] = v
		if v > d.max {
			d.max = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Len returns the number of words in the dictionary.
func (d *FreqDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.counts)
}

// Score returns min(1, ln(1+v)/ln(1+max)) for a known word.
func (d *FreqDict) Score(word string) float64 {
	if d == nil || word == "" || d.max <= 0 {
		return BaselineScore
	}
	v := d.counts[word]
	if v <= 0 {
		return BaselineScore
	}
	return math.Min(1, math.Log1p(float64(v))/math.Log1p(float64(d.max)))
}
