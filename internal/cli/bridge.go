package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shelftrack/internal/bridge"
	"github.com/roach88/shelftrack/internal/config"
	"github.com/roach88/shelftrack/internal/tag"
	"github.com/roach88/shelftrack/internal/topology"
)

// BridgeOptions holds flags for the bridge command.
type BridgeOptions struct {
	Listen   string
	Server   string
	Topology string
}

// NewBridgeCommand creates the bridge command.
func NewBridgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BridgeOptions{}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the TCP sensor bridge",
		Long: `Accept raw TCP connections from RFID readers and forward decoded
detections to the tracking server over HTTP.

The bridge runs on the local network next to the readers; the topology file
tells it which connecting address is which kind of reader.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "TCP listen address (default from SHELFTRACK_BRIDGE_ADDR)")
	cmd.Flags().StringVar(&opts.Server, "server", "", "tracking server base URL (default from SHELFTRACK_SERVER_URL)")
	cmd.Flags().StringVar(&opts.Topology, "topology", "", "CUE topology file (default from SHELFTRACK_TOPOLOGY)")

	return cmd
}

func runBridge(ctx context.Context, rootOpts *RootOptions, opts *BridgeOptions) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if opts.Listen != "" {
		cfg.BridgeAddr = opts.Listen
	}
	if opts.Server != "" {
		cfg.ServerURL = opts.Server
	}
	if opts.Topology != "" {
		cfg.TopologyPath = opts.Topology
	}
	if cfg.TopologyPath == "" {
		return NewExitError(ExitCommandError, "bridge requires a topology file (--topology or SHELFTRACK_TOPOLOGY)")
	}

	topo, err := topology.Load(cfg.TopologyPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading topology", err)
	}
	kinds := make(map[string]tag.ReaderKind, len(topo.Readers))
	for _, r := range topo.Readers {
		kinds[r.Identity] = r.Kind
	}

	lis, err := net.Listen("tcp", cfg.BridgeAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listening", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	submitter := NewHTTPSubmitter(cfg.ServerURL)
	if err := bridge.New(submitter, kinds).Serve(ctx, lis); err != nil && ctx.Err() == nil {
		return WrapExitError(ExitCommandError, "bridge failed", err)
	}
	return nil
}

// HTTPSubmitter forwards bridge events to the tracking server's API.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSubmitter creates a submitter posting to the given base URL.
func NewHTTPSubmitter(baseURL string) *HTTPSubmitter {
	return &HTTPSubmitter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SubmitDetection posts one detection event.
func (s *HTTPSubmitter) SubmitDetection(ctx context.Context, readerIdentity, key string, kind tag.ReaderKind, detected bool) error {
	return s.post(ctx, "/api/detections", map[string]any{
		"reader_identity": readerIdentity,
		"key":             key,
		"kind":            kind,
		"detected":        detected,
	})
}

// ReportConnectivity posts one connectivity change.
func (s *HTTPSubmitter) ReportConnectivity(identity string, connected bool) error {
	return s.post(context.Background(), "/api/connectivity", map[string]any{
		"reader_identity": identity,
		"connected":       connected,
	})
}

func (s *HTTPSubmitter) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error.Code != "" {
			return fmt.Errorf("server rejected %s: %s: %s", path, envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("server rejected %s: status %d", path, resp.StatusCode)
	}
	return nil
}
