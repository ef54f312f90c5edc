package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/wincapture/internal/capture"
	"github.com/breeze-rmm/wincapture/internal/config"
	"github.com/breeze-rmm/wincapture/internal/logging"
)

var (
	outputPath    string
	monitorHandle string
	monitorIndex  int
	jsonOutput    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Capture one frame of a monitor",
	Long: `Capture one frame of a monitor. Without --handle or --index the monitor
nearest to the null window (the primary monitor) is captured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("handle") && cmd.Flags().Changed("index") {
			return errors.New("--handle and --index are mutually exclusive")
		}
		return runCapture(cmd, func(ctx context.Context, c *capture.Capturer) (*capture.Bitmap, error) {
			hmon := capture.DefaultMonitor
			switch {
			case cmd.Flags().Changed("handle"):
				h, err := parseMonitorHandle(monitorHandle)
				if err != nil {
					return nil, err
				}
				hmon = h
			case cmd.Flags().Changed("index"):
				monitors, err := c.Monitors()
				if err != nil {
					return nil, fmt.Errorf("list monitors: %w", err)
				}
				m, ok := capture.MonitorByIndex(monitors, monitorIndex)
				if !ok {
					return nil, fmt.Errorf("no monitor with index %d", monitorIndex)
				}
				hmon = m.Handle
			}
			return c.CaptureMonitor(ctx, hmon)
		})
	},
}

var windowCmd = &cobra.Command{
	Use:   "window <hwnd>",
	Short: "Capture one frame of a window",
	Long:  `Capture one frame of a window. The handle is decimal or 0x-prefixed hex.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return runCapture(cmd, func(ctx context.Context, c *capture.Capturer) (*capture.Bitmap, error) {
			return c.CaptureWindow(ctx, capture.WindowHandle(h))
		})
	},
}

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List connected monitors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := loadConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := selectPlatform(cfg.Backend)
		if err != nil {
			return err
		}
		monitors, err := capture.New(p, captureOptions(cfg)).Monitors()
		if err != nil {
			return err
		}
		return printMonitors(cmd.OutOrStdout(), monitors, jsonOutput)
	},
}

func init() {
	for _, c := range []*cobra.Command{monitorCmd, windowCmd} {
		c.Flags().StringVarP(&outputPath, "output", "o", "", `output file, "-" for stdout (default capture-<time>.<format>)`)
	}
	monitorCmd.Flags().StringVar(&monitorHandle, "handle", "", "monitor handle (HMONITOR), decimal or 0x-hex")
	monitorCmd.Flags().IntVar(&monitorIndex, "index", 0, "monitor index as listed by 'wincapture monitors'")
	monitorsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
}

func runCapture(cmd *cobra.Command, grab func(context.Context, *capture.Capturer) (*capture.Bitmap, error)) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := selectPlatform(cfg.Backend)
	if err != nil {
		return err
	}
	c := capture.New(p, captureOptions(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx = logging.NewContext(ctx, logging.FromContext(ctx).With("command", cmd.Name()))

	start := time.Now()
	bmp, err := grab(ctx, c)
	if err != nil {
		return err
	}
	log.Info("frame captured",
		"backend", c.Backend(),
		"width", bmp.Width,
		"height", bmp.Height,
		"durationMs", time.Since(start).Milliseconds(),
	)

	path := outputPath
	if path == "" {
		path = defaultOutputPath(cfg.OutputFormat, time.Now())
	}
	if err := writeBitmap(path, cmd.OutOrStdout(), bmp, formatFor(path, cfg.OutputFormat), cfg.JPEGQuality); err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintln(cmd.ErrOrStderr(), path)
	}
	return nil
}

func captureOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		FrameTimeout:   cfg.FrameTimeout(),
		BorderRequired: cfg.BorderRequired,
	}
}

// parseHandle accepts a decimal or 0x-prefixed hexadecimal handle value.
func parseHandle(s string) (uintptr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty handle")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	return uintptr(v), nil
}

// parseMonitorHandle parses an explicit --handle value. Zero is rejected
// because it would silently select the default monitor.
func parseMonitorHandle(s string) (capture.MonitorHandle, error) {
	h, err := parseHandle(s)
	if err != nil {
		return 0, err
	}
	if h == 0 {
		return 0, errors.New("monitor handle must not be 0; omit --handle to capture the default monitor")
	}
	return capture.MonitorHandle(h), nil
}

func defaultOutputPath(format string, now time.Time) string {
	ext := strings.ToLower(format)
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("capture-%s.%s", now.Format("20060102-150405"), ext)
}

// formatFor prefers the output file's extension over the configured format.
func formatFor(path, configured string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	}
	return configured
}

func writeBitmap(path string, stdout io.Writer, bmp *capture.Bitmap, format string, quality int) error {
	if path == "-" {
		return capture.Encode(stdout, bmp, format, quality)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := capture.Encode(f, bmp, format, quality); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func printMonitors(w io.Writer, monitors []capture.MonitorInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(monitors)
	}
	for _, m := range monitors {
		primary := ""
		if m.IsPrimary {
			primary = " (primary)"
		}
		fmt.Fprintf(w, "%d: %s handle=%#x %dx%d at %d,%d%s\n",
			m.Index, m.Name, uintptr(m.Handle), m.Width, m.Height, m.X, m.Y, primary)
	}
	return nil
}
