package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"levelup-sidequest/internal/app"
	"levelup-sidequest/internal/domain"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type questFile struct {
	Quests []domain.Quest `yaml:"quests"`
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load authored quests from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if file != "" {
				cfg.Seed.QuestsFile = file
			}
			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			admin := app.NewQuestAdmin(st.questWriter, st.quests, logger)
			return seedFromFile(cmd.Context(), admin, cfg.Seed.QuestsFile, logger)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "quest YAML file (defaults to seed.quests_file)")
	return cmd
}

func loadQuestFile(path string) ([]domain.Quest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quests: %w", err)
	}
	var f questFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Quests, nil
}

// seedFromFile creates the quests in path, skipping any whose question is already stored.
func seedFromFile(ctx context.Context, admin *app.QuestAdmin, path string, logger *slog.Logger) error {
	quests, err := loadQuestFile(path)
	if err != nil {
		return err
	}
	existing, err := admin.List(ctx)
	if err != nil {
		return fmt.Errorf("list quests: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, q := range existing {
		seen[strings.TrimSpace(q.Question)] = true
	}

	var fresh []domain.Quest
	for _, q := range quests {
		if seen[strings.TrimSpace(q.Question)] {
			continue
		}
		q.ID = 0
		fresh = append(fresh, q)
	}
	n, err := admin.Seed(ctx, fresh)
	if err != nil {
		return err
	}
	logger.Info("quests seeded", "file", path, "created", n, "skipped", len(quests)-len(fresh))
	return nil
}
