package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/messaging/kafka"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/internal/infrastructure/registry"
	"github.com/chemlens/chemlens/internal/infrastructure/synonyms"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

type resolveOptions struct {
	term        string
	subCategory string
}

func newResolveCommand(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve [file.csv]",
		Short: "Resolve descriptions offline, without persistence",
		Long: `Resolve runs the identity-resolution pipeline against the configured
registry (and assistant, when configured) and writes the outcomes as CSV to
stdout. Input is either a procurement CSV file or a single --term.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.term == "" && len(args) == 0 {
				return fmt.Errorf("provide a CSV file or --term")
			}

			svc, err := buildResolver(root.configPath)
			if err != nil {
				return err
			}

			var rows []material.RawItem
			if opts.term != "" {
				rows = []material.RawItem{{Description: opts.term, SubCategory: opts.subCategory}}
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				rows, err = material.ParseRawItems(f)
				if err != nil {
					return err
				}
			}

			return runResolve(cmd.Context(), svc, rows, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.term, "term", "", "resolve a single description instead of a file")
	cmd.Flags().StringVar(&opts.subCategory, "sub-category", "", "sub-category for --term")
	return cmd
}

// buildResolver wires a resolution service for offline use: no database, no
// cache, no event publishing.
func buildResolver(configPath string) (resolution.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Fall back to defaults + environment when the file is absent.
		cfg, err = config.Load("")
		if err != nil {
			return nil, err
		}
	}
	cfg.Kafka.Enabled = false

	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	metrics := prometheus.New()

	return resolution.NewService(
		registry.NewClient(cfg.Registry, nil, metrics, log),
		synonyms.NewClient(cfg.Synonyms, metrics, log),
		llm.New(cfg.LLM, metrics, log),
		noRules{},
		nil, // no persistence in offline mode; Resolve never touches it
		kafka.NewPublisher(cfg.Kafka, metrics, log),
		metrics,
		cfg.Worker.ItemTimeout,
		log,
	), nil
}

// runResolve resolves every row sequentially and streams the outcomes as CSV.
func runResolve(ctx context.Context, svc resolution.Service, rows []material.RawItem, out io.Writer) error {
	w := csv.NewWriter(out)
	header := []string{"description", "sub_category", "identifier",
		"descriptive_name", "final_search_term", "source", "confidence"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := svc.Resolve(ctx, row.Description, row.SubCategory)
		record := []string{
			row.Description,
			row.SubCategory,
			res.Identifier,
			res.DescriptiveName,
			res.FinalSearchTerm,
			res.Source,
			strconv.Itoa(res.Confidence),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// noRules is the rule source for offline resolution: every sub-category falls
// back to the built-in defaults.
type noRules struct{}

func (noRules) Upsert(context.Context, *rule.CategoryRule) error {
	return errors.New(errors.ErrCodeBadRequest, "rules are read-only in offline mode")
}

func (noRules) FindBySubCategory(_ context.Context, sub string) (*rule.CategoryRule, error) {
	return nil, errors.New(errors.ErrCodeRuleNotFound, "no stored rule for "+sub)
}

func (noRules) List(context.Context) ([]*rule.CategoryRule, error) { return nil, nil }

func (noRules) Delete(context.Context, common.ID) error {
	return errors.New(errors.ErrCodeBadRequest, "rules are read-only in offline mode")
}
