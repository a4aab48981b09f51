package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

type ui struct {
	out    io.Writer
	reader *bufio.Reader

	title func(a ...interface{}) string
	ok    func(a ...interface{}) string
	info  func(a ...interface{}) string
	warn  func(a ...interface{}) string
	err   func(a ...interface{}) string
	dim   func(a ...interface{}) string
}

func newUI() *ui {
	return &ui{
		out:    os.Stdout,
		reader: bufio.NewReader(os.Stdin),
		title:  color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:     color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:   color.New(color.FgCyan).SprintFunc(),
		warn:   color.New(color.FgYellow).SprintFunc(),
		err:    color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:    color.New(color.FgHiBlack).SprintFunc(),
	}
}

func (u *ui) Section(title string) {
	fmt.Fprintf(u.out, "\n%s\n", u.title("【 "+title+" 】"))
}

func (u *ui) Info(format string, args ...any) {
	fmt.Fprintf(u.out, "%s %s\n", u.info("ℹ"), fmt.Sprintf(format, args...))
}

func (u *ui) Success(format string, args ...any) {
	fmt.Fprintf(u.out, "%s %s\n", u.ok("✓"), fmt.Sprintf(format, args...))
}

func (u *ui) Warning(format string, args ...any) {
	fmt.Fprintf(u.out, "%s %s\n", u.warn("⚠"), fmt.Sprintf(format, args...))
}

func (u *ui) Error(format string, args ...any) {
	fmt.Fprintf(u.out, "%s %s\n", u.err("✗"), fmt.Sprintf(format, args...))
}

func (u *ui) Dim(s string) string {
	return u.dim(s)
}

func (u *ui) Table() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(u.out)
	return t
}

// Spin shows a spinner with message while action runs.
func (u *ui) Spin(message string, action func() error) error {
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " " + message
	spin.Start()
	err := action()
	spin.Stop()
	return err
}

func (u *ui) Progress(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(24),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (u *ui) Prompt(label, def string) string {
	if def != "" {
		fmt.Fprintf(u.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(u.out, "%s: ", label)
	}
	line, _ := u.reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// PromptSecret reads a line without echoing it when stdin is a terminal.
func (u *ui) PromptSecret(label string) (string, error) {
	fmt.Fprintf(u.out, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := u.reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(u.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (u *ui) Confirm(message string) bool {
	answer := strings.ToLower(u.Prompt(message+" (y/N)", ""))
	return answer == "y" || answer == "yes"
}

func (u *ui) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
