package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/clipsight/clipsight/internal/analysis"
)

// Extractor decodes source media into the raw inputs the analyzers consume,
// using FFmpeg/FFprobe. It holds no per-job state; decoded buffers belong to
// the calling job and are discarded with it.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
}

func NewExtractor(ffmpegPath, ffprobePath string) *Extractor {
	return &Extractor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// AudioSampleRate is the mono decode rate used for energy analysis. Energy
// banding is insensitive to fidelity above this, and decoding less keeps the
// buffers small on long media.
const AudioSampleRate = 16000

// ExtractAudioSamples decodes the audio track to mono float samples in
// [-1, 1]. A source with no audio track returns an empty slice, not an
// error; the audio analyzer scores silence as 0.
func (e *Extractor) ExtractAudioSamples(ctx context.Context, filePath string) ([]float64, int, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner",
		"-i", filePath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(AudioSampleRate),
		"-f", "s16le",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		// No audio stream is a degraded input, not a failure.
		if strings.Contains(stderr.String(), "does not contain any stream") ||
			strings.Contains(stderr.String(), "Output file does not contain any stream") {
			return nil, AudioSampleRate, nil
		}
		return nil, 0, fmt.Errorf("ffmpeg audio decode: %w (output: %s)", err, lastLines(stderr.String(), 10))
	}

	raw := stdout.Bytes()
	samples := make([]float64, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[i:]))
		samples = append(samples, float64(v)/math.MaxInt16)
	}
	return samples, AudioSampleRate, nil
}

var (
	framePtsRe   = regexp.MustCompile(`pts_time:(\d+\.?\d*)`)
	sceneScoreRe = regexp.MustCompile(`lavfi\.scene_score=(\d+\.?\d*)`)
)

// ExtractFrameDiffs samples the video at the given fps and returns the
// scene-change score between each pair of consecutive sampled frames.
// The scene filter outputs a [0,1] difference metric per frame; parsing
// follows the metadata=print stderr format.
func (e *Extractor) ExtractFrameDiffs(ctx context.Context, filePath string, fps float64) ([]analysis.FrameDiff, error) {
	if fps <= 0 {
		fps = 2
	}
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner",
		"-i", filePath,
		"-vf", fmt.Sprintf("fps=%g,select='gte(scene,0)',metadata=print", fps),
		"-an",
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A pure-audio source has no frames to diff.
		if strings.Contains(string(output), "does not contain any stream") {
			return nil, nil
		}
		return nil, fmt.Errorf("ffmpeg scene filter: %w (output: %s)", err, lastLines(string(output), 10))
	}
	return parseFrameDiffs(string(output)), nil
}

// parseFrameDiffs pairs pts_time lines with the lavfi.scene_score that
// follows them in the metadata printout.
func parseFrameDiffs(output string) []analysis.FrameDiff {
	var diffs []analysis.FrameDiff
	var ts float64
	tsSet := false
	for _, line := range strings.Split(output, "\n") {
		if m := framePtsRe.FindStringSubmatch(line); len(m) >= 2 {
			ts, _ = strconv.ParseFloat(m[1], 64)
			tsSet = true
			continue
		}
		if m := sceneScoreRe.FindStringSubmatch(line); len(m) >= 2 && tsSet {
			score, _ := strconv.ParseFloat(m[1], 64)
			diffs = append(diffs, analysis.FrameDiff{Timestamp: ts, Diff: score})
			tsSet = false
		}
	}
	return diffs
}

// ProbeDuration returns the media duration in seconds via ffprobe.
func (e *Extractor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", result.Format.Duration, err)
	}
	return duration, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
