package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultLabels returns the gesture vocabulary in model output order:
// letters, digits, common words, then basic ISL signs.
func DefaultLabels() []string {
	labels := make([]string, 0, 45)
	for c := 'A'; c <= 'Z'; c++ {
		labels = append(labels, string(c))
	}
	for d := '0'; d <= '9'; d++ {
		labels = append(labels, string(d))
	}
	labels = append(labels, "hello", "thank you", "please")
	labels = append(labels, "namaste", "sorry", "good", "bad", "eat", "drink")
	return labels
}

// LoadLabels reads one label per line. Blank lines are skipped.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// SaveLabels writes one label per line.
func SaveLabels(path string, labels []string) error {
	data := strings.Join(labels, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}
