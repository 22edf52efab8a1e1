package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/4ier/logodeth/internal/client"
	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/recognition"
	"github.com/4ier/logodeth/internal/validate"
)

// mockDelay stands in for model latency in --mock runs.
const mockDelay = 1500 * time.Millisecond

var defaultProviderOrder = []string{string(llm.ProviderOpenAI), string(llm.ProviderAnthropic)}

var (
	analyzeMock         bool
	analyzeMockFixtures string
	analyzeProviders    []string
	analyzeForceRefresh bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Recognise the band behind a logo image",
	Long: `Upload a logo image and print the ranked candidates.

Examples:
  logodeth analyze ./logo.png
  logodeth analyze ./logo.jpg --provider anthropic --force-refresh
  logodeth analyze ./logo.webp --api https://logodeth.example.com --json
  logodeth analyze ./logo.png --mock`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := &analyzer{
			stdout:    cmd.OutOrStdout(),
			stderr:    cmd.ErrOrStderr(),
			now:       time.Now,
			mockDelay: mockDelay,
		}
		return a.run(cmd.Context(), args[0])
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeMock, "mock", false, "Rank the built-in candidate list locally instead of calling the API")
	analyzeCmd.Flags().StringVar(&analyzeMockFixtures, "mock-fixtures", "", "YAML candidate list for --mock")
	analyzeCmd.Flags().StringSliceVarP(&analyzeProviders, "provider", "p", defaultProviderOrder, "Provider preference order (openai, anthropic)")
	analyzeCmd.Flags().BoolVar(&analyzeForceRefresh, "force-refresh", false, "Ignore cached results")
}

type analyzer struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	// client is built from --api when nil.
	client    *client.Client
	mockDelay time.Duration
}

func (a *analyzer) run(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if err := validate.ClientCheck(mime.TypeByExtension(filepath.Ext(path)), info.Size()); err != nil {
		return err
	}

	p := newProgress(a.stderr)
	var result *client.Result
	if analyzeMock {
		result, err = a.mock(ctx, p)
	} else {
		result, err = a.remote(ctx, p, path)
	}
	p.Stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(a.stdout, result, a.now())
	_, _ = color.New(color.FgGreen).Fprintln(a.stderr, client.SuccessMessage(result, a.now()))
	return nil
}

func (a *analyzer) remote(ctx context.Context, p *progress, path string) (*client.Result, error) {
	c := a.client
	if c == nil {
		c = newClient()
	}

	for _, name := range analyzeProviders {
		if _, err := llm.ParseProvider(name); err != nil {
			return nil, err
		}
	}

	p.Update("Checking API status...")
	if err := c.CheckHealth(ctx); err != nil {
		return nil, userError(err)
	}

	p.Update("Uploading image...")
	p.Update("Analyzing with AI...")
	result, err := c.RecognizeFile(ctx, path, client.Options{
		ProviderPreference: analyzeProviders,
		ForceRefresh:       analyzeForceRefresh,
	})
	if err != nil {
		return nil, userError(err)
	}

	p.Update("Processing results...")
	return result, nil
}

func (a *analyzer) mock(ctx context.Context, p *progress) (*client.Result, error) {
	candidates, err := recognition.LoadMockCandidates(analyzeMockFixtures)
	if err != nil {
		return nil, err
	}
	m := recognition.NewMockRecognizer(candidates, a.mockDelay)

	p.Update("Uploading image...")
	p.Update("Analyzing with AI...")
	start := a.now()
	resp, err := m.Recognize(ctx, llm.Image{}, nil)
	if err != nil {
		return nil, userError(err)
	}

	p.Update("Processing results...")
	return &client.Result{
		BandName:         resp.BandName,
		Confidence:       resp.Confidence,
		Genre:            resp.Genre,
		Description:      resp.Description,
		AIModel:          resp.Model,
		ProcessingTimeMS: a.now().Sub(start).Milliseconds(),
		Timestamp:        a.now().UTC(),
		Ranked:           m.Ranked(),
	}, nil
}
