package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/runner"
)

// lineDisplay prints the status block as one line whenever it changes.
type lineDisplay struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func newLineDisplay(w io.Writer) *lineDisplay {
	return &lineDisplay{w: w}
}

func (d *lineDisplay) Show(lines []string) {
	line := strings.Join(lines, " | ")

	d.mu.Lock()
	defer d.mu.Unlock()
	if line == d.last {
		return
	}
	d.last = line
	fmt.Fprintln(d.w, line)
}

// runPlain feeds each line of in to the controller as a command and copies
// log messages to logw until ctx is done.
func runPlain(ctx context.Context, ctrl *runner.Controller, in io.Reader, logw io.Writer) error {
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			if !ctrl.Send(command.Parse(sc.Text())) {
				fmt.Fprintln(logw, "command queue full, dropped")
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ctrl.Logs():
				fmt.Fprintln(logw, msg)
			}
		}
	}()

	err := ctrl.Start(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
