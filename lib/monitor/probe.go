package monitor

import (
	"regexp"
	"strconv"

	"github.com/onkernel/aibridge/lib/sites"
)

// Vocabulary shown by studio-style sites while a run is in progress.
var RunningWords = []string{"Running", "Generating", "Thinking", "正在运行", "生成中", "思考中"}

const (
	LoadingSelector = `[role="progressbar"], .loading, .spinner, [class*="loading"], [class*="spinner"]`
	ImageSelector   = `img[src*="generated"], img[src*="output"], img[src*="blob:"], img[src*="data:image"]`
)

// Probe tells the page driver what to look for on each tick.
type Probe struct {
	StopSelector    string   `json:"stopSelector"`
	RunningWords    []string `json:"runningWords"`
	LoadingSelector string   `json:"loadingSelector"`
	ImageSelector   string   `json:"imageSelector"`
}

// ProbeFor builds the probe for a site. Only studio sites, which lack a
// reliable stop control, use the text, loading-indicator and image heuristics.
func ProbeFor(site sites.Site) Probe {
	p := Probe{StopSelector: site.StopSelector}
	if site.Kind == sites.KindStudio {
		p.RunningWords = RunningWords
		p.LoadingSelector = LoadingSelector
		p.ImageSelector = ImageSelector
	}
	return p
}

// Signals is what the page driver reports for a probe.
type Signals struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	DocumentID     string `json:"documentId"`
	StopVisible    bool   `json:"stopVisible"`
	RunningText    bool   `json:"runningText"`
	LoadingVisible bool   `json:"loadingVisible"`
	ImageCount     int    `json:"imageCount"`
}

func (s Signals) Generating() bool {
	return s.StopVisible || s.RunningText || s.LoadingVisible
}

var (
	ranForRe     = regexp.MustCompile(`Ran for (\d+)\s?s`)
	thoughtForRe = regexp.MustCompile(`Thought for (\d+)\s?s(?:econds?)?`)
)

// Annotations holds durations parsed from completion notes in the page text.
type Annotations struct {
	RunTime   *int
	ThinkTime *int
}

// ParseAnnotations extracts "Ran for N s" and "Thought for N seconds" notes.
// Pages keep earlier turns, so the last occurrence of each wins. This is
// matching on UI copy and breaks when a site rewords it.
func ParseAnnotations(text string) Annotations {
	return Annotations{
		RunTime:   lastInt(ranForRe, text),
		ThinkTime: lastInt(thoughtForRe, text),
	}
}

func lastInt(re *regexp.Regexp, text string) *int {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return nil
	}
	return &n
}
