package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func confirmWithPlain(in *bufio.Reader, out io.Writer, text string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", text)
	line, err := in.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return false, err
	}
	trimmed := strings.ToLower(strings.TrimSpace(line))
	return trimmed == "y" || trimmed == "yes", nil
}

func chooseWithPlain(in *bufio.Reader, out io.Writer, title string, options []string) (int, bool, error) {
	fmt.Fprintln(out, title)
	for i, option := range options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, option)
	}
	fmt.Fprint(out, "Choice (empty to cancel): ")
	line, err := in.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return -1, false, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || n < 1 || n > len(options) {
		return -1, false, nil
	}
	return n - 1, true, nil
}
