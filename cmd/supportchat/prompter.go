package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
)

// terminalPrompter stands in for the platform biometric prompt with a y/N
// confirmation on the terminal.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *terminalPrompter) Availability(context.Context) (domain.Availability, error) {
	return domain.Availability{Available: true, Kind: domain.BiometryFingerprint}, nil
}

func (p *terminalPrompter) Authenticate(ctx context.Context, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	answer, err := readLine(p.in, p.out, reason+" [y/N]: ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
