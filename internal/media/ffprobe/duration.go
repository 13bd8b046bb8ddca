package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ZeroClock is the runtime reported when none could be read.
const ZeroClock = "00:00:00"

// Tools accepted by Prober.
const (
	ToolFFprobe   = "ffprobe"
	ToolMediainfo = "mediainfo"
)

// ErrNoDuration is returned when a probe succeeded but reported no runtime.
var ErrNoDuration = errors.New("no duration reported")

var mediainfoDuration = regexp.MustCompile(`Duration\s+:\s+(\d{2}:\d{2}:\d{2})`)

// FormatClock renders seconds as hh:mm:ss, dropping fractions. Hours are not
// wrapped at 24.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return ZeroClock
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ParseMediainfo extracts the first hh:mm:ss duration from `mediainfo -f`
// output.
func ParseMediainfo(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if m := mediainfoDuration.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Prober reads media runtimes with the preferred tool and falls back to the
// other one.
type Prober struct {
	Tool      string
	FFprobe   string
	Mediainfo string
	Run       Runner
}

// Duration returns the runtime of path as hh:mm:ss.
func (p Prober) Duration(ctx context.Context, path string) (string, error) {
	order := []string{ToolFFprobe, ToolMediainfo}
	if strings.EqualFold(p.Tool, ToolMediainfo) {
		order = []string{ToolMediainfo, ToolFFprobe}
	}
	var errs []error
	for _, tool := range order {
		var (
			clock string
			err   error
		)
		switch tool {
		case ToolFFprobe:
			clock, err = p.ffprobe(ctx, path)
		default:
			clock, err = p.mediainfo(ctx, path)
		}
		if err == nil {
			return clock, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", tool, err))
	}
	return "", errors.Join(errs...)
}

func (p Prober) ffprobe(ctx context.Context, path string) (string, error) {
	result, err := Inspect(ctx, p.Run, p.FFprobe, path)
	if err != nil {
		return "", err
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds < 1 {
		return "", ErrNoDuration
	}
	return FormatClock(seconds), nil
}

func (p Prober) mediainfo(ctx context.Context, path string) (string, error) {
	binary := strings.TrimSpace(p.Mediainfo)
	if binary == "" {
		binary = ToolMediainfo
	}
	run := p.Run
	if run == nil {
		run = ExecRunner
	}
	output, err := run(ctx, binary, "-f", path)
	if err != nil {
		return "", fmt.Errorf("mediainfo: %w: %s", err, strings.TrimSpace(string(output)))
	}
	clock, ok := ParseMediainfo(string(output))
	if !ok || clock == ZeroClock {
		return "", ErrNoDuration
	}
	return clock, nil
}
