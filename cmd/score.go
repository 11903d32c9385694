package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/upload"
)

const (
	PromptShowRanking = "Show ranking"
	PromptShowHigh    = "Show high intent leads"
	PromptShowLead    = "Inspect a lead"
	PromptExport      = "Export results to CSV"
	PromptExit        = "Exit"
	PromptBack        = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowRanking, PromptShowHigh, PromptShowLead, PromptExport, PromptExit},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a CSV of leads against an offer file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("offer", "o", "", "offer file (yaml or json)")
	scoreCmd.Flags().StringP("leads", "l", "", "leads csv file")
	scoreCmd.Flags().StringP("export", "e", "", "write ranked results to this csv file")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "print the ranking and exit without prompting")

	scoreCmd.MarkFlagRequired("offer")
	scoreCmd.MarkFlagRequired("leads")
}

func score(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, _, s, orchestrator := bootstrap(ctx)
	defer logger.Sync() //nolint:errcheck

	offer, err := leads.LoadOffer(cmd.Flag("offer").Value.String())
	if err != nil {
		return fmt.Errorf("loading offer: %w", err)
	}
	if _, err := s.SetOffer(*offer); err != nil {
		return err
	}

	res, err := readLeads(cmd.Flag("leads").Value.String())
	if err != nil {
		return err
	}
	for _, rowErr := range res.Errors {
		logger.Warn("skipping lead row", zap.Int("row", rowErr.Row), zap.String("reason", rowErr.Message))
	}
	logger.Info("leads loaded", zap.Int("accepted", res.Accepted), zap.Int("skipped", res.Skipped))
	s.SetLeads(res.Leads)

	results, summary, err := orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	logger.Info("scoring finished",
		zap.String("run_id", summary.RunID),
		zap.Int("high", summary.High),
		zap.Int("medium", summary.Medium),
		zap.Int("low", summary.Low),
		zap.Int("degraded", summary.Degraded),
	)

	ranked := results.Ranked()

	if path := cmd.Flag("export").Value.String(); path != "" {
		if _, err := exportResults(path, ranked); err != nil {
			return err
		}
		logger.Info("results exported", zap.String("filename", path))
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return printRanking(os.Stdout, ranked)
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handleAction(action, ranked, logger); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			return err
		}
	}
}

func handleAction(action string, ranked leads.Results, logger *zap.Logger) error {
	switch action {
	case PromptShowRanking:
		return printRanking(os.Stdout, ranked)
	case PromptShowHigh:
		return printRanking(os.Stdout, ranked.WithIntent(leads.IntentHigh))
	case PromptShowLead:
		return inspectLead(ranked)
	case PromptExport:
		filename, err := exportResults("", ranked)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping results to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func readLeads(path string) (upload.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.Result{}, fmt.Errorf("opening leads file: %w", err)
	}
	defer f.Close()

	src, err := upload.CSV(f)
	if err != nil {
		return upload.Result{}, fmt.Errorf("reading leads file %q: %w", path, err)
	}

	return upload.Ingest(src), nil
}

// exportResults writes results to path or, when path is empty, to a new temp file.
func exportResults(path string, results leads.Results) (string, error) {
	var (
		f   *os.File
		err error
	)
	if path == "" {
		f, err = os.CreateTemp("", "scored_leads-*.csv")
	} else {
		f, err = os.Create(path)
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := leads.WriteCSV(f, results); err != nil {
		return "", err
	}

	return f.Name(), f.Close()
}

func printRanking(w io.Writer, results leads.Results) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tROLE\tCOMPANY\tINTENT\tRULES\tAI\tSCORE")
	for i, r := range results {
		intent := string(r.Intent)
		if r.Degraded {
			intent += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			i+1, r.Lead.Name, r.Lead.Role, r.Lead.Company, intent, r.RuleScore, r.AIPoints, r.FinalScore)
	}
	if results.Degraded() > 0 {
		fmt.Fprintln(tw, "\n* AI classification unavailable, fallback intent applied")
	}
	return tw.Flush()
}

func inspectLead(ranked leads.Results) error {
	for {
		items := make([]string, 0, len(ranked)+1)
		for i, r := range ranked {
			items = append(items, fmt.Sprintf("%d %s / %s / %s (%d)", i+1, r.Lead.Name, r.Lead.Role, r.Lead.Company, r.FinalScore))
		}

		leadPrompt := promptui.Select{
			Label: "Choose a lead and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := leadPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		r := ranked[idx]
		fmt.Printf("%s, %s at %s (%s, %s)\n", r.Lead.Name, r.Lead.Role, r.Lead.Company, r.Lead.Industry, r.Lead.Location)
		fmt.Printf("rules %d + ai %d (%s) = %d\n", r.RuleScore, r.AIPoints, r.Intent, r.FinalScore)
		switch {
		case r.Degraded:
			fmt.Printf("AI unavailable: %s\n", r.DegradedReason)
		case strings.TrimSpace(r.AIReasoning) != "":
			fmt.Printf("reasoning: %s\n", r.AIReasoning)
		}
		fmt.Println()
	}
}
