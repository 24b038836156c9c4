package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/feedtrack/internal/config"
	"github.com/kalambet/feedtrack/internal/feedback"
)

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:     "feedback",
	Aliases: []string{"fb"},
	Short:   "List, create, update and delete feedback",
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		for _, name := range []string{"category", "priority", "status"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				q.Set(name, v)
			}
		}
		path := "/feedback"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var records []feedback.Record
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if asJSON {
			return writeIndented(cmd.OutOrStdout(), records)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No feedback found.")
			return nil
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	},
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single feedback item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/feedback/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var rec feedback.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), rec)
	},
}

var feedbackCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "File a new feedback item",
	Long: `File a new feedback item.

Examples:
  feedtrack feedback create --title "Bug on login" --description "Cannot log in on Safari"
  feedtrack feedback create --title "Dark mode" --description "Please add it" --category feature --priority low`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		priority, _ := cmd.Flags().GetString("priority")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/feedback", feedback.NewRecord{
			Title:       title,
			Description: description,
			Category:    feedback.Category(category),
			Priority:    feedback.Priority(priority),
		})
		if err != nil {
			return err
		}

		var rec feedback.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		printSuccess("Created feedback %s", rec.ID)
		fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return nil
	},
}

var feedbackUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a feedback item",
	Long: `Change fields of a feedback item. Only the flags you pass are sent.

Examples:
  feedtrack feedback update 0190f6b2-... --status resolved
  feedtrack feedback update 0190f6b2-... --priority high --title "Login broken on Safari 17"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := patchFromFlags(cmd)
		if patch.Empty() {
			return fmt.Errorf("at least one of --title, --description, --category, --priority or --status is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/feedback/"+url.PathEscape(args[0]), patch)
		if err != nil {
			return err
		}

		var rec feedback.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		printSuccess("Updated feedback %s (%s, %s)", rec.ID, rec.Priority, rec.Status)
		return nil
	},
}

var feedbackDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a feedback item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/feedback/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("%s", result["message"])
		return nil
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counts by category, priority and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/feedback/stats")
		if err != nil {
			return err
		}

		var stats feedback.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d\n", colorize(colorBold, "Total:"), stats.Total)
		for _, c := range feedback.Categories {
			fmt.Fprintf(out, "  %-12s %d\n", c, stats.ByCategory[c])
		}
		for _, p := range feedback.Priorities {
			fmt.Fprintf(out, "  %-12s %d\n", p, stats.ByPriority[p])
		}
		for _, s := range feedback.Statuses {
			fmt.Fprintf(out, "  %-12s %d\n", s, stats.ByStatus[s])
		}
		return nil
	},
}

// patchFromFlags builds a patch from the flags explicitly set on cmd.
func patchFromFlags(cmd *cobra.Command) feedback.Patch {
	var p feedback.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		p.Description = &v
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		c := feedback.Category(v)
		p.Category = &c
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		pr := feedback.Priority(v)
		p.Priority = &pr
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		s := feedback.Status(v)
		p.Status = &s
	}
	return p
}

func printRecords(w io.Writer, records []feedback.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tPRIORITY\tSTATUS\tUPDATED\tTITLE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Category, priorityColor(r.Priority), statusColor(r.Status),
			r.UpdatedAt.Local().Format("2006-01-02 15:04"), truncate(r.Title, 60))
	}
	tw.Flush()
}

// truncate shortens s to at most n runes, ending it with "..." when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	feedbackListCmd.Flags().String("category", "", "filter by category (bug, feature, general)")
	feedbackListCmd.Flags().String("priority", "", "filter by priority (low, medium, high)")
	feedbackListCmd.Flags().String("status", "", "filter by status (open, in-progress, resolved)")
	feedbackListCmd.Flags().Bool("json", false, "print raw JSON")

	feedbackCreateCmd.Flags().String("title", "", "short summary")
	feedbackCreateCmd.Flags().String("description", "", "full description")
	feedbackCreateCmd.Flags().String("category", "", "bug, feature or general (default general)")
	feedbackCreateCmd.Flags().String("priority", "", "low, medium or high (default medium)")
	feedbackCreateCmd.MarkFlagRequired("title")
	feedbackCreateCmd.MarkFlagRequired("description")

	feedbackUpdateCmd.Flags().String("title", "", "new title")
	feedbackUpdateCmd.Flags().String("description", "", "new description")
	feedbackUpdateCmd.Flags().String("category", "", "bug, feature or general")
	feedbackUpdateCmd.Flags().String("priority", "", "low, medium or high")
	feedbackUpdateCmd.Flags().String("status", "", "open, in-progress or resolved")

	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackShowCmd)
	feedbackCmd.AddCommand(feedbackCreateCmd)
	feedbackCmd.AddCommand(feedbackUpdateCmd)
	feedbackCmd.AddCommand(feedbackDeleteCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask the AI assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/ai/ask", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var result struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
