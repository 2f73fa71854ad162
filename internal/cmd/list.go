package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/snippetcheck/internal/models"
)

// NewListCommand creates and returns the list subcommand
func NewListCommand() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "list <catalog-path>...",
		Short: "List catalog snippets grouped by topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSnippets(args, topic, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Only list snippets of this topic")

	return cmd
}

func listSnippets(paths []string, topic string, output io.Writer) error {
	store, err := loadCatalog(paths)
	if err != nil {
		return err
	}

	snippets := store.Filter(topic)
	if len(snippets) == 0 {
		if topic != "" {
			fmt.Fprintf(output, "No snippets with topic %q\n", topic)
		} else {
			fmt.Fprintln(output, "No snippets found")
		}
		return nil
	}

	byTopic := make(map[string][]models.Snippet)
	var order []string
	for _, s := range snippets {
		if _, ok := byTopic[s.Topic]; !ok {
			order = append(order, s.Topic)
		}
		byTopic[s.Topic] = append(byTopic[s.Topic], s)
	}

	for i, t := range order {
		if i > 0 {
			fmt.Fprintln(output)
		}
		fmt.Fprintf(output, "%s (%d)\n", t, len(byTopic[t]))
		for _, s := range byTopic[t] {
			line := "  " + s.ID
			var tags []string
			if s.AllowError {
				tags = append(tags, "allows error")
			}
			if s.Match == models.MatchPattern {
				tags = append(tags, "pattern")
			}
			if s.Timeout > 0 {
				tags = append(tags, fmt.Sprintf("timeout %s", s.Timeout))
			}
			if len(tags) > 0 {
				line += " [" + strings.Join(tags, ", ") + "]"
			}
			if s.Description != "" {
				line += " - " + s.Description
			}
			fmt.Fprintln(output, line)
		}
	}
	return nil
}
