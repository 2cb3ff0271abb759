package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/spf13/cobra"
)

type printOptions struct {
	file        string
	destination string
	start       int
}

func buildPrintCommand(root *rootOptions) *cobra.Command {
	opts := &printOptions{}
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Register, render and print the labels listed in a JSON file",
		Long: `print runs one label job and waits for its result.

The file holds either an array of items or a full job request:
  [{"product_id": "p-1", "name": "Blue Dream", "quantity": 2}]
  {"items": [...], "sale": {"order_id": "o-1"}}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrint(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "items JSON file (- for stdin)")
	cmd.Flags().StringVarP(&opts.destination, "destination", "d", "", "printer destination, e.g. tcp://10.0.0.5:9100")
	cmd.Flags().IntVar(&opts.start, "start", -1, "first slot to print on (default: printer setting)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPrint(cmd *cobra.Command, root *rootOptions, opts *printOptions) error {
	req, err := readJobRequest(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	if opts.destination != "" {
		req.Destination = opts.destination
	}
	if opts.start >= 0 {
		req.StartPosition = &opts.start
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return fmt.Errorf("invalid job request: %w", err)
	}

	cfg, err := root.load()
	if err != nil {
		return err
	}
	// a terminal session has nobody to confirm a preview
	cfg.Printer.AutoPrint = true

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := Bootstrap(ctx, cfg, Version)
	if err != nil {
		return err
	}
	defer app.Close()

	jobCfg := StoreDefaults(cfg)
	req.Sale.ApplyTo(&jobCfg, time.Now())
	out := cmd.OutOrStdout()
	result := app.Orchestrator.Run(ctx, apprinting.RunRequest{
		Items:         dto.Items(req.Items),
		Config:        &jobCfg,
		Destination:   req.Destination,
		StartPosition: req.StartPosition,
		Observer: func(u printing.StatusUpdate) {
			if u.Result == nil {
				fmt.Fprintf(out, "%-18s %s\n", u.State, u.Message)
			}
		},
	})
	fmt.Fprintf(out, "job %s: %s\n", result.JobID, result.Message())
	if !result.Success {
		return errors.New(string(result.Kind))
	}
	return nil
}

// readJobRequest accepts a job request object or a bare item array
func readJobRequest(stdin io.Reader, path string) (*dto.CreateLabelJobRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	req := &dto.CreateLabelJobRequest{}
	var items []dto.LabelItemRequest
	if err := json.Unmarshal(data, &items); err == nil {
		req.Items = items
		return req, nil
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("failed to parse items: %w", err)
	}
	return req, nil
}
