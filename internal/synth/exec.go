package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execSynthesizer struct {
	cmd        []string
	sampleRate int
	mu         sync.Mutex
}

type execRequest struct {
	Markup     string `json:"markup"`
	Language   string `json:"language"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

// NewExecSynthesizer wraps an external TTS command that reads a JSON request
// on stdin and writes newline-delimited JSON chunks of base64 PCM on stdout.
func NewExecSynthesizer(command string, sampleRate int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execSynthesizer{cmd: args, sampleRate: sampleRate}, nil
}

func (e *execSynthesizer) Synthesize(ctx context.Context, req Request) (Audio, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = e.sampleRate
	}
	input, err := json.Marshal(execRequest{
		Markup:     req.Markup,
		Language:   req.Language,
		Voice:      req.Voice,
		SampleRate: sampleRate,
	})
	if err != nil {
		return Audio{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Audio{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Audio{}, err
	}
	if err := cmd.Start(); err != nil {
		return Audio{}, err
	}

	if _, err := stdin.Write(input); err != nil {
		cmd.Wait()
		return Audio{}, err
	}
	stdin.Close()

	var pcm []byte
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			cmd.Wait()
			return Audio{}, fmt.Errorf("decode synthesis chunk: %w", err)
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			cmd.Wait()
			return Audio{}, fmt.Errorf("decode synthesis pcm: %w", err)
		}
		pcm = append(pcm, chunk...)
		if resp.Final {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		cmd.Wait()
		return Audio{}, err
	}
	if err := cmd.Wait(); err != nil {
		return Audio{}, fmt.Errorf("synthesis command failed: %w", err)
	}

	// 16-bit mono PCM.
	duration := float64(len(pcm)) / float64(sampleRate*2)
	return Audio{PCM: pcm, SampleRate: sampleRate, DurationSecs: duration}, nil
}
