package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/logdesk/internal/license"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Inspect and manage the license",
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the license status",
	Args:  cobra.NoArgs,
	RunE:  runLicenseStatus,
}

var licenseSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install a license token",
	Args:  cobra.NoArgs,
	RunE:  runLicenseSetup,
}

var licenseVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the backend to re-validate the license",
	Args:  cobra.NoArgs,
	RunE:  runLicenseVerify,
}

var licenseClearCmd = &cobra.Command{
	Use:     "clear",
	Aliases: []string{"rm"},
	Short:   "Remove the license",
	Args:    cobra.NoArgs,
	RunE:    runLicenseClear,
}

var (
	setupToken  string
	setupAPIURL string
	assumeYes   bool
)

func init() {
	licenseSetupCmd.Flags().StringVar(&setupToken, "token", "", "license token")
	licenseSetupCmd.Flags().StringVar(&setupAPIURL, "api-url", "", "license API URL (default from license-api-url)")
	licenseClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	licenseCmd.AddCommand(licenseClearCmd)
	licenseCmd.AddCommand(licenseSetupCmd)
	licenseCmd.AddCommand(licenseStatusCmd)
	licenseCmd.AddCommand(licenseVerifyCmd)
}

// licenseSession runs one license action and prints what the controller
// renders along the way.
type licenseSession struct {
	ctrl *license.Controller
	out  *cardRenderer
}

func newLicenseSession(cmd *cobra.Command) (context.Context, *licenseSession, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.RequestTimeout)

	out := newCardRenderer(cmd.OutOrStdout())
	ctrl := newLicenseController(cfg, newAPIClient(cfg), out)
	s := &licenseSession{ctrl: ctrl, out: out}
	return ctx, s, func() {
		ctrl.Close()
		cancel()
	}, nil
}

// finish re-reads the status after a successful action. The controller
// schedules its own re-check, but a one-shot command exits before it fires.
func (s *licenseSession) finish(ctx context.Context, actionErr error) error {
	if actionErr != nil {
		return actionErr
	}
	_, err := s.ctrl.CheckStatus(ctx)
	return err
}

func runLicenseStatus(cmd *cobra.Command, _ []string) error {
	ctx, s, done, err := newLicenseSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	_, err = s.ctrl.CheckStatus(ctx)
	return err
}

func runLicenseSetup(cmd *cobra.Command, _ []string) error {
	ctx, s, done, err := newLicenseSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	return s.finish(ctx, s.ctrl.Setup(ctx, setupToken, setupAPIURL))
}

func runLicenseVerify(cmd *cobra.Command, _ []string) error {
	ctx, s, done, err := newLicenseSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	verifyErr := s.ctrl.Verify(ctx)
	// The status is shown after a verification whatever its outcome.
	if _, err := s.ctrl.CheckStatus(ctx); err != nil && verifyErr == nil {
		return err
	}
	return verifyErr
}

func runLicenseClear(cmd *cobra.Command, _ []string) error {
	ctx, s, done, err := newLicenseSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	confirm := promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	if assumeYes {
		confirm = func(string) bool { return true }
	}

	err = s.ctrl.Clear(ctx, confirm)
	if errors.Is(err, license.ErrNotConfirmed) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
		return nil
	}
	return s.finish(ctx, err)
}

// promptConfirmer asks on w and reads a y/N answer from r.
func promptConfirmer(r io.Reader, w io.Writer) license.Confirmer {
	return func(prompt string) bool {
		fmt.Fprintf(w, "%s [y/N] ", prompt)
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// cardRenderer prints license cards and each notification once.
type cardRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[string]bool
	r       *lipgloss.Renderer
}

func newCardRenderer(w io.Writer) *cardRenderer {
	return &cardRenderer{
		w:       w,
		printed: make(map[string]bool),
		r:       lipgloss.NewRenderer(w),
	}
}

func (c *cardRenderer) DisplayLicenseStatus(view license.StatusView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	color := lipgloss.Color("208")
	switch view.State {
	case license.StateValid:
		color = lipgloss.Color("42")
	case license.StateInvalid:
		color = lipgloss.Color("196")
	}
	title := c.r.NewStyle().Foreground(color).Bold(true).Render(view.Title)
	muted := c.r.NewStyle().Foreground(lipgloss.Color("244"))

	body := strings.Join([]string{
		title,
		muted.Render(view.Subtitle),
		"",
		fmt.Sprintf("%-12s %s", "Device ID:", view.DeviceUUID),
		fmt.Sprintf("%-12s %s", "Last check:", view.LastCheck),
		fmt.Sprintf("%-12s %s", "Created:", view.CreatedAt),
	}, "\n")

	card := c.r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(body)
	fmt.Fprintln(c.w, card)
}

func (c *cardRenderer) DisplayNotifications(list []license.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range list {
		if c.printed[n.ID] {
			continue
		}
		c.printed[n.ID] = true
		fmt.Fprintf(c.w, "%s %s\n", n.Icon, n.Text)
	}
}
