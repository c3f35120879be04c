package benchmark

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Unified logging decorators in time,level,tags order
var (
	linePattern    = regexp.MustCompile(`^\[([^\]]*)\]\[([^\]]*)\]\[([^\]]*)\]\s?(.*)$`)
	gcPausePattern = regexp.MustCompile(`\bPause\b.*?([0-9]+(?:\.[0-9]+)?)ms\s*$`)
	timeLayouts    = []string{"2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05.000Z0700", time.RFC3339Nano}
)

// Entry is one decorated unified log line
type Entry struct {
	Time    time.Time
	Level   string
	Tags    []string
	Message string
}

// TagSet returns the tags joined the way the JVM prints them
func (e Entry) TagSet() string {
	return strings.Join(e.Tags, ",")
}

// ParseLine splits a decorated line. ok is false for undecorated lines such
// as continuation output.
func ParseLine(line string) (Entry, bool) {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return Entry{}, false
	}

	e := Entry{
		Level:   strings.TrimSpace(m[2]),
		Message: m[4],
	}
	for _, tag := range strings.Split(m[3], ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			e.Tags = append(e.Tags, tag)
		}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, m[1]); err == nil {
			e.Time = t
			break
		}
	}
	return e, true
}

// Summary aggregates a unified log
type Summary struct {
	Lines     int            `json:"lines" yaml:"lines"`
	Malformed int            `json:"malformed" yaml:"malformed"`
	Events    map[string]int `json:"events" yaml:"events"`
	Levels    map[string]int `json:"levels" yaml:"levels"`

	ClassesLoaded int `json:"classesLoaded" yaml:"classesLoaded"`
	// ClassesFromCache counts classes served from the AOT cache or CDS archive
	ClassesFromCache int           `json:"classesFromCache" yaml:"classesFromCache"`
	GCPauses         int           `json:"gcPauses" yaml:"gcPauses"`
	GCPauseTotal     time.Duration `json:"gcPauseTotal" yaml:"gcPauseTotal"`
	Safepoints       int           `json:"safepoints" yaml:"safepoints"`

	FirstEvent time.Time `json:"firstEvent,omitempty" yaml:"firstEvent,omitempty"`
	LastEvent  time.Time `json:"lastEvent,omitempty" yaml:"lastEvent,omitempty"`
}

// Span is the time between the first and last timestamped event
func (s *Summary) Span() time.Duration {
	if s.FirstEvent.IsZero() || s.LastEvent.IsZero() {
		return 0
	}
	return s.LastEvent.Sub(s.FirstEvent)
}

// TagCount pairs a tag set with its event count
type TagCount struct {
	Tags  string
	Count int
}

// TopEvents returns the n most frequent tag sets, ties broken by name
func (s *Summary) TopEvents(n int) []TagCount {
	counts := make([]TagCount, 0, len(s.Events))
	for tags, count := range s.Events {
		counts = append(counts, TagCount{Tags: tags, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tags < counts[j].Tags
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// ParseLog reads a unified log from r
func ParseLog(r io.Reader) (*Summary, error) {
	s := &Summary{
		Events: make(map[string]int),
		Levels: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.Lines++

		e, ok := ParseLine(line)
		if !ok {
			s.Malformed++
			continue
		}
		s.add(e)
	}
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("failed to read unified log: %w", err)
	}
	return s, nil
}

// ParseLogFile reads the unified log at path
func ParseLogFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unified log: %w", err)
	}
	defer f.Close()
	return ParseLog(f)
}

func (s *Summary) add(e Entry) {
	s.Events[e.TagSet()]++
	s.Levels[e.Level]++

	if !e.Time.IsZero() {
		if s.FirstEvent.IsZero() || e.Time.Before(s.FirstEvent) {
			s.FirstEvent = e.Time
		}
		if e.Time.After(s.LastEvent) {
			s.LastEvent = e.Time
		}
	}

	switch {
	case hasTags(e, "class", "load"):
		s.ClassesLoaded++
		if strings.Contains(e.Message, "source: shared objects file") {
			s.ClassesFromCache++
		}
	case hasTags(e, "gc"):
		if m := gcPausePattern.FindStringSubmatch(e.Message); m != nil {
			s.GCPauses++
			if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
				s.GCPauseTotal += time.Duration(ms * float64(time.Millisecond))
			}
		}
	case hasTags(e, "safepoint"):
		if strings.HasPrefix(e.Message, "Safepoint ") {
			s.Safepoints++
		}
	}
}

// hasTags reports whether e carries exactly the given tags
func hasTags(e Entry, tags ...string) bool {
	if len(e.Tags) != len(tags) {
		return false
	}
	for i, tag := range tags {
		if e.Tags[i] != tag {
			return false
		}
	}
	return true
}
