package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/cleansing"
	"github.com/Ramsey-B/fern/pkg/models"
)

type cleanseOptions struct {
	source    string
	target    string
	threshold float64
	dbPath    string
	userID    string
	asJSON    bool
}

func newCleanseCommand(ctx *commandContext) *cobra.Command {
	opts := &cleanseOptions{}

	cmd := &cobra.Command{
		Use:   "cleanse",
		Short: "Scan a source batch against a target batch for duplicates",
		Long: "Runs a cleansing job locally against an embedded SQLite store.\n" +
			"Both files hold a JSON array of records, or a YAML list when the\n" +
			"file ends in .yaml or .yml.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req, err := loadRequest(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				req.ConfidenceThreshold = &opts.threshold
			}
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("invalid cleansing request: %w", err)
			}

			logger, flush, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer flush()

			dbCfg := databaseConfig(cfg)
			dbCfg.Driver = "sqlite"
			dbCfg.Path = opts.dbPath
			conn, err := openDatabase(cmd.Context(), dbCfg, cfg, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			o, err := newOracle(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}

			store := repositories.NewCleansingStore(conn, logger)
			service := cleansing.NewService(logger, store, newCascade(o, cfg, logger)).
				WithDefaultThreshold(cfg.DefaultConfidenceThreshold)

			resp, err := service.Run(cmd.Context(), opts.userID, req)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(resp))
			if len(resp.Matches) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderMatches(resp.Matches))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Path to the source records (JSON or YAML)")
	cmd.Flags().StringVar(&opts.target, "target", "", "Path to the target records (JSON or YAML, optional)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", models.DefaultConfidenceThreshold, "Minimum confidence for a match to be kept")
	cmd.Flags().StringVar(&opts.dbPath, "db", ":memory:", "SQLite file to persist the job in")
	cmd.Flags().StringVar(&opts.userID, "user", "local", "Owner recorded on the job")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output the job response as JSON")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func loadRequest(opts *cleanseOptions) (models.CleansingRequest, error) {
	source, err := readRecords(opts.source)
	if err != nil {
		return models.CleansingRequest{}, err
	}

	target := []models.CandidateRecord{}
	if opts.target != "" {
		target, err = readRecords(opts.target)
		if err != nil {
			return models.CleansingRequest{}, err
		}
	}

	return models.CleansingRequest{SourceData: source, TargetData: target}, nil
}

func readRecords(path string) ([]models.CandidateRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []models.CandidateRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: expected a YAML list of records: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: expected a JSON array of records: %w", path, err)
		}
	}
	if records == nil {
		records = []models.CandidateRecord{}
	}
	return records, nil
}

func renderSummary(resp *models.CleansingResponse) string {
	s := resp.Summary
	rows := [][]string{
		{"Job", resp.JobID},
		{"Records scanned", strconv.Itoa(s.TotalRecords)},
		{"Duplicates found", strconv.Itoa(s.DuplicatesFound)},
		{"High confidence", strconv.Itoa(s.HighConfidenceMatches)},
		{"Medium confidence", strconv.Itoa(s.MediumConfidenceMatches)},
		{"Exact", strconv.Itoa(s.ExactMatches)},
		{"Fuzzy", strconv.Itoa(s.FuzzyMatches)},
		{"Phonetic", strconv.Itoa(s.PhoneticMatches)},
		{"Semantic", strconv.Itoa(s.SemanticMatches)},
	}
	return renderTable([]string{"Summary", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderMatches(matches []models.MatchResult) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		target := "-"
		if m.TargetRecordID != nil {
			target = *m.TargetRecordID
		}
		conflicts := "-"
		if len(m.ConflictFields) > 0 {
			conflicts = strings.Join(m.ConflictFields, ", ")
		}
		rows = append(rows, []string{
			m.SourceRecordID,
			target,
			string(m.MatchType),
			strconv.FormatFloat(m.ConfidenceScore, 'f', 2, 64),
			string(m.SuggestedAction),
			conflicts,
		})
	}
	return renderTable(
		[]string{"Source", "Target", "Type", "Score", "Action", "Conflicts"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
