// Package prompt obtains the watched directory, asking on the terminal until a
// usable path is given.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"assetwatch/internal/logging"
)

const Question = "Provide the absolute filepath of the directory containing your widget assets: "

var ErrNotDirectory = errors.New("the provided path was not a directory")

// Validate stats path and returns its cleaned absolute form.
func Validate(path string) (string, error) {
	trimmed := trimInput(path)
	if trimmed == "" {
		return "", fmt.Errorf("empty path: %w", os.ErrNotExist)
	}
	absolute, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", trimmed, err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", absolute, ErrNotDirectory)
	}
	return absolute, nil
}

type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	logger *logging.Logger
}

func New(in io.Reader, out io.Writer, logger *logging.Logger) *Prompter {
	if out == nil {
		out = io.Discard
	}
	return &Prompter{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
}

// Resolve validates initial when it is set and otherwise, or when it is
// rejected, asks until a directory is given.
func (p *Prompter) Resolve(ctx context.Context, initial string) (string, error) {
	if strings.TrimSpace(initial) != "" {
		path, err := Validate(initial)
		if err == nil {
			return path, nil
		}
		p.report(initial, err)
	}
	return p.Ask(ctx)
}

// Ask repeats the question until the answer names an existing directory. It
// fails when input ends or ctx is cancelled.
func (p *Prompter) Ask(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(p.out, Question)
		answer, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		path, err := Validate(answer)
		if err == nil {
			return path, nil
		}
		p.report(answer, err)
	}
}

func (p *Prompter) report(path string, err error) {
	if errors.Is(err, ErrNotDirectory) {
		fmt.Fprintln(p.out, "The provided path was not a directory.")
	} else {
		fmt.Fprintln(p.out, err)
	}
	p.logger.Debug("directory rejected", map[string]string{
		"path":  strings.TrimSpace(path),
		"error": err.Error(),
	})
}

type lineResult struct {
	line string
	err  error
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	result := make(chan lineResult, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		result <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case read := <-result:
		if read.err != nil {
			if errors.Is(read.err, io.EOF) && strings.TrimSpace(read.line) != "" {
				return read.line, nil
			}
			if errors.Is(read.err, io.EOF) {
				return "", fmt.Errorf("no directory provided: %w", io.ErrUnexpectedEOF)
			}
			return "", read.err
		}
		return read.line, nil
	}
}

// trimInput strips whitespace and the quotes terminals add to dropped paths.
func trimInput(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' || first == '\'') && first == last {
			trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		}
	}
	return trimmed
}
